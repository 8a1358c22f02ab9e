package main

import (
	"os"

	"conclave/cmd/conclave/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
