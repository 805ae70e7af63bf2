package main

import (
	"os"

	"github.com/polyver/polyver/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
