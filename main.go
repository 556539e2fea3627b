package main

import "github.com/ozkatz/zipmeta/cmd"

func main() {
	cmd.Execute()
}
