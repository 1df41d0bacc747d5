// Package main is the entry point for avfailoverd.
package main

import (
	"os"

	"github.com/jmylchreest/avfailover/cmd/avfailoverd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
