// Package main is the entry point for the cbreplay application
package main

import (
	"github.com/seabed-tools/cbreplay/cmd"
)

func main() {
	cmd.Execute()
}
