package main

import "github.com/wirekv/wirekv/cmd"

func main() {
	cmd.Execute()
}
