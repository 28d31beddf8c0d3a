package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"

	"github.com/sashabaranov/go-openai"

	"github.com/docmesh/ingest-be/types"
)

// visionOCRInstruction pins the model to emitting only the converted markdown.
const visionOCRInstruction = "Você é um conversor de PDF para markdown. " +
	"Converta esta imagem de um documento PDF para um documento markdown válido. " +
	"Não inclua nenhum comentário adicional. Retorne somente o conteúdo do documento " +
	"markdown sem adição dos marcadores ``` para delimitar o markdown."

// VisionOCRService is the terminal PDF fallback: every page is rasterized and
// sent individually to a vision-capable LLM. A page that fails keeps an inline
// error message as its content instead of failing the file.
type VisionOCRService struct {
	client *openai.Client
	model  string

	numPages  func(pdfPath string) (int, error)
	rasterize func(ctx context.Context, pdfPath string, pageNumber int, dir string) (string, error)
}

func NewVisionOCRService(baseURL, apiKey, model string) *VisionOCRService {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &VisionOCRService{
		client:    openai.NewClientWithConfig(config),
		model:     model,
		numPages:  getNumPages,
		rasterize: rasterizePage,
	}
}

func (s *VisionOCRService) ExtractPages(ctx context.Context, filePath string) ([]types.Page, error) {
	total, err := s.numPages(filePath)
	if err != nil {
		return nil, err
	}

	tempDir, err := os.MkdirTemp("", "vision-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	pages := make([]types.Page, 0, total)
	for pageNum := 1; pageNum <= total; pageNum++ {
		imagePath, err := s.rasterize(ctx, filePath, pageNum, tempDir)
		if err != nil {
			return nil, err
		}
		content, err := s.ocrImage(ctx, imagePath)
		if err != nil {
			log.Printf("Error processing page %d with vision model: %v", pageNum, err)
			content = fmt.Sprintf("Error extracting text with vision model: %v", err)
		}
		pages = append(pages, types.Page{PageNumber: pageNum, Content: content})
	}
	return pages, nil
}

func (s *VisionOCRService) ocrImage(ctx context.Context, imagePath string) (string, error) {
	imageBytes, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(imageBytes)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		MaxTokens:   4095,
		Temperature: 0.0,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: visionOCRInstruction,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:image/jpeg;base64," + encoded,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response generated")
	}
	return normalizeMarkdown(resp.Choices[0].Message.Content), nil
}
