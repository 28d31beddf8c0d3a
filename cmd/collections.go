package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/docmesh/ingest-be/config"
	"github.com/docmesh/ingest-be/database"
)

// collectionsCmd represents the collections command
var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List the collections on the Milvus server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		ctx := context.Background()
		store, err := database.NewMilvusStore(ctx, cfg.MilvusConfig)
		if err != nil {
			log.Fatalf("Failed to connect to Milvus: %v", err)
		}
		defer store.Close()

		names, err := store.ListCollections(ctx)
		if err != nil {
			log.Fatalf("Failed to list collections: %v", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
	},
}

func init() {
	rootCmd.AddCommand(collectionsCmd)
}
