package main

import (
	"os"

	"github.com/ilyalazarenkoit/eltis-test/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
