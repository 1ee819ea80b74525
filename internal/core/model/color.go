package model

import "hash/fnv"

// NumColorIDs is the size of the color palette shared by slices and
// counter series. Color IDs are stable hash buckets, so the same title
// always maps to the same palette entry across imports and processes.
const NumColorIDs = 30

// StringColorID returns the stable palette index for a title.
func StringColorID(s string) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() % NumColorIDs)
}
