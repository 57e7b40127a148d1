package main

import (
	"os"

	"github.com/gnolang/irreduce/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
