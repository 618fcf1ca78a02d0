package main

import (
	"fmt"
	"os"

	"github.com/spline-tsfm/dashctl/cmd/dashctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
