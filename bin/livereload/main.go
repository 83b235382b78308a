package main

import (
	"fmt"
	"os"

	"livereload.io/livereload/cmd"
)

func main() {
	if err := cmd.Cmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
