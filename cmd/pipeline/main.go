package main

import (
	"os"

	"FactorPipe/internal/cli"
)

func main() {
	os.Exit(int(cli.Run()))
}
