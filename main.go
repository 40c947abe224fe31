package main

import (
	"fmt"
	"os"

	_ "hivekeeper/cmd"
	"hivekeeper/cmd/root"
	"hivekeeper/internal/apperr"
)

func main() {
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(apperr.ExitCode(err))
	}
	os.Exit(0)
}
