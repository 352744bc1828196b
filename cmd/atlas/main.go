package main

import (
	"os"

	"github.com/moolen/atlas/cmd/atlas/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
