// Package main implements the nebula command-line client.
package main

import (
	"os"

	"github.com/blackportal-ai/nebula/internal/cli"
)

// version is set at build time to a Git tag.
var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
