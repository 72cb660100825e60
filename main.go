// Plexus translates between a subset of Python and a node-based Graph IR.
//
// Python files decompile into graphs of typed nodes and links, graphs compile
// back into Python, and whole workspaces can be indexed and served over MCP.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/plexus-go/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
