package main

import "github.com/emrgen/rard/cmd"

func main() {
	cmd.Execute()
}
