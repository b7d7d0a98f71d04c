package main

import (
	"os"

	"lendloop/cmd/lendloop/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
