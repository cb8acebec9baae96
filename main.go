package main

import "github.com/agentic-research/tagnav/cmd"

func main() {
	cmd.Execute()
}
