package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ingest-be",
	Short: "Document ingestion backend for semantic search",
	Long: `ingest-be extracts text from heterogeneous documents (PDF, DOCX, XLSX,
CSV, plain text), falls back across OCR strategies when embedded text is
missing or broken, chunks the result, computes embeddings and persists them
into a Milvus collection for retrieval.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.yaml", "config file")
}
