package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	OpenAIAPIKey   string       `mapstructure:"OPENAI_API_KEY"`
	MistralAPIKey  string       `mapstructure:"MISTRAL_API_KEY"`
	AIEndpoint     string       `mapstructure:"ai_endpoint"`
	EmbeddingModel string       `mapstructure:"embedding_model"`
	VisionModel    string       `mapstructure:"vision_model"`
	MilvusConfig   MilvusConfig `mapstructure:"milvus_config"`
	IngestConfig   IngestConfig `mapstructure:"ingest_config"`
}

type MilvusConfig struct {
	Address  string `mapstructure:"address"`
	Username string `mapstructure:"MILVUS_USERNAME"`
	Password string `mapstructure:"MILVUS_PASSWORD"`
}

type IngestConfig struct {
	ChunkSize              int `mapstructure:"chunk_size"`
	ChunkOverlap           int `mapstructure:"chunk_overlap"`
	InsertBatchSize        int `mapstructure:"insert_batch_size"`
	MaxTokensPerBatch      int `mapstructure:"max_tokens_per_batch"`
	TokensPerChunkEstimate int `mapstructure:"tokens_per_chunk_estimate"`
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set up Viper to read from config file
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Set up Viper to read from environment variables
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Bind environment variables
	v.BindEnv("OPENAI_API_KEY")
	v.BindEnv("MISTRAL_API_KEY")
	v.BindEnv("milvus_config.MILVUS_USERNAME", "MILVUS_USERNAME")
	v.BindEnv("milvus_config.MILVUS_PASSWORD", "MILVUS_PASSWORD")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}
