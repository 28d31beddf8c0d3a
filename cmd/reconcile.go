package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/docmesh/ingest-be/config"
	"github.com/docmesh/ingest-be/database"
	"github.com/docmesh/ingest-be/service"
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Delete stored chunks of files that are no longer wanted",
	Long: `Diffs the file names stored in a collection against the desired set and
deletes every chunk belonging to a file not in that set. Desired files absent
from the store are not created; run ingest for those separately.`,
	Run: func(cmd *cobra.Command, args []string) {
		collection, _ := cmd.Flags().GetString("collection")
		keep, _ := cmd.Flags().GetStringArray("keep")

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

		results, err := service.NewReconcileService(store).Reconcile(ctx, collection, keep)
		if err != nil {
			log.Fatalf("Reconciliation failed: %v", err)
		}
		if len(results) == 0 {
			fmt.Println("Nothing to remove")
			return
		}
		for fileName, count := range results {
			fmt.Printf("Removed %d chunks of %s\n", count, fileName)
		}
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringP("collection", "c", "", "Collection to reconcile")
	reconcileCmd.Flags().StringArrayP("keep", "k", []string{}, "File names that must stay in the collection")
	reconcileCmd.MarkFlagRequired("collection")
}
