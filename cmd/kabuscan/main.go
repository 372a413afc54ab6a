package main

import (
	"os"

	"github.com/yshimizu/kabuscan/cmd/kabuscan/commands"
)

// main is the entry point for the kabuscan CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
