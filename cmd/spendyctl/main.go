package main

import (
	"os"

	"spendy/internal/commands"
)

func main() {
	if err := commands.NewRootCommand(commands.DefaultEnv()).Execute(); err != nil {
		os.Exit(1)
	}
}
