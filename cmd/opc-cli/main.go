package main

import (
	"os"

	"github.com/wends155/opc-cli-sub000/cmd/opc-cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
