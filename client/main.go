package main

import (
	"os"

	"github.com/genup/genup/client/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
