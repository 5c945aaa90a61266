package main

import (
	"fmt"
	"os"

	"github.com/mehmetkoksal-w/lingua/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "lingua: %v\n", err)
		os.Exit(1)
	}
}
