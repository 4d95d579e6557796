package main

import (
	"os"

	"github.com/septivank/meter-reading-uploads/cmd/meterctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
