package main

import (
	"fmt"
	"os"

	"github.com/Blackdeer1524/RelDB/src/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "reldb:", err)
		os.Exit(1)
	}
}
