// Package main is the entry point for the arcsync CLI tool.
package main

import (
	"os"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
