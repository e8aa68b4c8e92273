package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
)

// Injected at build time via -ldflags; defaults to "dev".
var version = "dev"

func main() {
	if err := fang.Execute(context.Background(), newRootCmd(), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}
