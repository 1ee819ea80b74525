package main

import (
	"os"

	"github.com/traceboard/traceboard/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
