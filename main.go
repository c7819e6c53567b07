package main

import (
	"os"

	"github.com/joho/godotenv"

	"spockctl/internal/cli"
)

func main() {
	// Environment overrides (SPOCKCTL_*) may live in a local .env file;
	// a missing file is fine.
	_ = godotenv.Load()

	os.Exit(cli.Execute())
}
