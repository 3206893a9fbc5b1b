package main

import "github.com/CraigKelly/varsub/cmd"

func main() {
	cmd.Execute()
}
