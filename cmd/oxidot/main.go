// Package main is the entry point for the oxidot CLI application.
// oxidot manages dotfiles as bare-alias git repositories ("clusters")
// deployed into a work-tree alias through sparse-checkout rules.
package main

import (
	"github.com/awkless/oxidot/cmd/oxidot/cmd"
)

func main() {
	cmd.Execute()
}
