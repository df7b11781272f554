package main

import (
	"os"

	"github.com/abhisek/quizforge/cmd"
)

func main() {
	// Cobra already prints the error; just carry the exit code.
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
