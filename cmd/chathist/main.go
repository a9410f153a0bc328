package main

import "github.com/diogo/chathist/internal/commands"

func main() {
	commands.Execute()
}
