package main

import "serialduplex/cmd"

func main() {
	cmd.Execute()
}
