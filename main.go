// main package for hydra command-line tool
// Package main is the entry point for the Hydra CLI.
package main

import "hydra.dev/pkg/hydra/cmd"

func main() {
	cmd.Execute()
}
