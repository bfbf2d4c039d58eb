// Command journey edits journey canvases from the command line.
package main

import "github.com/mesh-intelligence/journey/internal/cli"

func main() {
	cli.Execute()
}
