package main

import (
	"fmt"
	"os"

	"github.com/spy-duck/duck-tui/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintf(os.Stderr, "duck: %v\n", err)
		os.Exit(1)
	}
}
