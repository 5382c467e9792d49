package main

import "github.com/upashthiti/upashthiti/cmd"

func main() {
	cmd.Execute()
}
