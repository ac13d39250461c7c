package main

import (
	"os"

	"github.com/hupe1980/vecshard/cmd/vecshard/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
