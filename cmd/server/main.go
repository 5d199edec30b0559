package main

import "github.com/BioHazard786/duobooth/internal/commands"

// The relay on its own, for deployments that don't need the client.
func main() {
	commands.ExecuteServer()
}
