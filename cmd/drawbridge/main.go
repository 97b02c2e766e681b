package main

import (
	"os"

	"github.com/majorcontext/drawbridge/cmd/drawbridge/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
