package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/kailas-cloud/taxdex/internal/cli"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
