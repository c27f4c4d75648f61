package main

import "github.com/KaramelBytes/vetviz-cli/cmd"

func main() {
	cmd.Execute()
}
