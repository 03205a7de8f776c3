package main

import (
	"os"

	"billine-gateway/cmd/billine-sign/cli"
)

func main() {
	if err := cli.New().Execute(); err != nil {
		os.Exit(1)
	}
}
