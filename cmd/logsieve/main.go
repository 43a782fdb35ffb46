package main

import (
	"os"

	"github.com/logsieve/logsieve/cmd/logsieve/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
