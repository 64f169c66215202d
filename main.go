package main

import "github.com/kozaktomas/agent-faceid/cmd"

func main() {
	cmd.Execute()
}
