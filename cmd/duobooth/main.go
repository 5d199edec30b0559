package main

import "github.com/BioHazard786/duobooth/internal/commands"

func main() {
	commands.Execute()
}
