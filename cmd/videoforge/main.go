package main

import (
	"os"

	"github.com/videoforge/videoforge/cmd/videoforge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
