package main

import (
	"os"

	"github.com/AloysioLvy/radar-intake/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
