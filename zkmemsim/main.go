// Package main is the entry point of the zkmemsim command line tool.
package main

import "github.com/sarchlab/zkmemsim/zkmemsim/cmd"

func main() {
	cmd.Execute()
}
