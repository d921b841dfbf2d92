package main

import (
	"os"

	"github.com/tehqua/Vitalis/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
