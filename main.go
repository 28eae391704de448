package main

import "github.com/agentic-research/tflmake/cmd"

func main() {
	cmd.Execute()
}
