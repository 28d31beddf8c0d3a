package main

import (
	"github.com/joho/godotenv"

	"github.com/docmesh/ingest-be/cmd"
)

func main() {
	cmd.Execute()
}

func init() {
	// API keys usually live in .env during development; a missing file is fine.
	godotenv.Load()
}
