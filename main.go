package main

import "github.com/iksnae/canvas-session/cmd"

func main() {
	cmd.Execute()
}
