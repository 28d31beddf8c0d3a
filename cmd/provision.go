package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/docmesh/ingest-be/config"
	"github.com/docmesh/ingest-be/database"
)

// provisionCmd represents the provision command
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Ensure a collection exists with schema, index and load state",
	Long: `Creates the collection with the fixed ingestion schema, builds its vector
index and loads it into serving memory. Running it again on an existing
collection is a no-op; the schema is never altered.`,
	Run: func(cmd *cobra.Command, args []string) {
		collection, _ := cmd.Flags().GetString("collection")

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

		created, err := store.EnsureCollection(ctx, collection)
		if err != nil {
			log.Fatalf("Failed to provision collection: %v", err)
		}
		if created {
			fmt.Printf("Collection %s created\n", collection)
		} else {
			fmt.Printf("Collection %s already exists\n", collection)
		}
	},
}

func init() {
	rootCmd.AddCommand(provisionCmd)

	provisionCmd.Flags().StringP("collection", "c", "", "Collection name")
	provisionCmd.MarkFlagRequired("collection")
}
