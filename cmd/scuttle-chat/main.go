package main

import (
	"os"

	"github.com/okwme/scuttle-chat/cmd/scuttle-chat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
