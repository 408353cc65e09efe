// Command flowpaste is the FlowPaste CLI and HTTP API.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/flowpaste/flowpaste/internal/cmd"
)

func main() {
	// A .env file in the working directory is optional; real environment
	// variables take precedence over it.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
