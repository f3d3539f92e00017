// Command feedctl is the Huddle operator CLI.
package main

import (
	"os"

	"huddle/cmd/feedctl/commands"
)

func main() {
	// errors are already printed by the printer package
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
