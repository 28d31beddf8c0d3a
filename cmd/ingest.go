package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/docmesh/ingest-be/config"
	"github.com/docmesh/ingest-be/database"
	"github.com/docmesh/ingest-be/service"
	"github.com/docmesh/ingest-be/types"
	"github.com/docmesh/ingest-be/utils"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Extract, embed and insert documents into a vector collection",
	Long: `Runs the full ingestion pipeline for one file or every supported file in a
directory: extraction with OCR fallback, chunking, embedding and batched
insertion into the target collection. The collection is provisioned on first
use.`,
	Run: func(cmd *cobra.Command, args []string) {
		collection, _ := cmd.Flags().GetString("collection")
		filePath, _ := cmd.Flags().GetString("file")
		dir, _ := cmd.Flags().GetString("dir")

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		var paths []string
		if filePath != "" {
			paths = append(paths, filePath)
		}
		if dir != "" {
			files, err := utils.ListFiles(dir)
			if err != nil {
				log.Fatalf("Failed to list files: %v", err)
			}
			for _, f := range files {
				if service.IsSupported(f) {
					paths = append(paths, f)
				} else {
					log.Printf("Skipping unsupported file %s", f)
				}
			}
		}
		if len(paths) == 0 {
			log.Fatal("No input files, use --file or --dir")
		}

		ctx := context.Background()
		store, err := database.NewMilvusStore(ctx, cfg.MilvusConfig)
		if err != nil {
			log.Fatalf("Failed to connect to Milvus: %v", err)
		}
		defer store.Close()

		mistral := service.NewMistralOCRClient(cfg.MistralAPIKey)
		vision := service.NewVisionOCRService(cfg.AIEndpoint, cfg.OpenAIAPIKey, cfg.VisionModel)
		extractService := service.NewExtractService(mistral, vision)
		chunkService := service.NewChunkService(types.ChunkServiceConfig{
			ChunkSize: cfg.IngestConfig.ChunkSize,
			Overlap:   cfg.IngestConfig.ChunkOverlap,
		})
		embedder := service.NewOpenAIEmbeddingService(cfg.AIEndpoint, cfg.OpenAIAPIKey, cfg.EmbeddingModel)
		ingestService := service.NewIngestService(extractService, chunkService, embedder, store, types.IngestServiceConfig{
			InsertBatchSize:        cfg.IngestConfig.InsertBatchSize,
			MaxTokensPerBatch:      cfg.IngestConfig.MaxTokensPerBatch,
			TokensPerChunkEstimate: cfg.IngestConfig.TokensPerChunkEstimate,
		})

		summary, err := ingestService.IngestFiles(ctx, collection, paths)
		if err != nil {
			log.Fatalf("Ingestion failed: %v", err)
		}
		fmt.Printf("Ingested %d files into %s: %d chunks in %d batches (%d failed)\n",
			summary.Files, summary.Collection, summary.Chunks, summary.Batches, summary.FailedBatches)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringP("collection", "c", "", "Target collection name")
	ingestCmd.Flags().StringP("file", "f", "", "Path to a single file to ingest")
	ingestCmd.Flags().StringP("dir", "d", "", "Directory whose supported files are ingested")
	ingestCmd.MarkFlagRequired("collection")
}
