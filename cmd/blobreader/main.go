package main

import (
	"github.com/asad/blobreader/internal/cli"
)

// main hands control to the CLI, which parses commands and runs them.
func main() {
	cli.Execute()
}
