package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/docmesh/ingest-be/types"
)

const (
	mistralDefaultBaseURL = "https://api.mistral.ai/v1"
	mistralOCRModel       = "mistral-ocr-latest"
	// mistralMaxPages is the page-range size for sub-documents uploaded to the
	// OCR service, which rejects very large documents.
	mistralMaxPages = 500
)

// MistralOCRClient talks to the Mistral document OCR API over plain HTTP:
// upload the file, obtain a signed URL, request OCR on it.
type MistralOCRClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client

	numPages  func(pdfPath string) (int, error)
	pageRange func(ctx context.Context, srcPath string, first, last int, destPath string) error
}

func NewMistralOCRClient(apiKey string) *MistralOCRClient {
	return &MistralOCRClient{
		baseURL:   mistralDefaultBaseURL,
		apiKey:    apiKey,
		model:     mistralOCRModel,
		client:    &http.Client{Timeout: 5 * time.Minute},
		numPages:  getNumPages,
		pageRange: extractPageRange,
	}
}

type mistralFileResponse struct {
	ID string `json:"id"`
}

type mistralSignedURLResponse struct {
	URL string `json:"url"`
}

type mistralOCRPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type mistralOCRResponse struct {
	Pages []mistralOCRPage `json:"pages"`
}

// ExtractPages OCRs a PDF. The document is split into page-range sub-documents
// of at most mistralMaxPages pages; page numbering stays global across them.
func (c *MistralOCRClient) ExtractPages(ctx context.Context, filePath string) ([]types.Page, error) {
	total, err := c.numPages(filePath)
	if err != nil {
		return nil, err
	}

	tempDir, err := os.MkdirTemp("", "mistral-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	var allPages []types.Page
	for start := 0; start < total; start += mistralMaxPages {
		end := start + mistralMaxPages
		if end > total {
			end = total
		}

		subPath := filepath.Join(tempDir, fmt.Sprintf("part-%d.pdf", start))
		if err := c.pageRange(ctx, filePath, start+1, end, subPath); err != nil {
			return nil, err
		}

		pages, err := c.processDocument(ctx, subPath)
		if err != nil {
			return nil, err
		}
		for _, p := range pages {
			allPages = append(allPages, types.Page{
				PageNumber: start + p.Index + 1,
				Content:    normalizeMarkdown(p.Markdown),
			})
		}
	}
	return allPages, nil
}

// processDocument uploads one sub-document and runs OCR on it.
func (c *MistralOCRClient) processDocument(ctx context.Context, filePath string) ([]mistralOCRPage, error) {
	fileID, err := c.uploadFile(ctx, filePath)
	if err != nil {
		return nil, err
	}
	signedURL, err := c.signedURL(ctx, fileID)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"model": c.model,
		"document": map[string]any{
			"type":         "document_url",
			"document_url": signedURL,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var ocrResp mistralOCRResponse
	if err := c.do(req, &ocrResp); err != nil {
		return nil, fmt.Errorf("mistral ocr request failed: %w", err)
	}
	return ocrResp.Pages, nil
}

func (c *MistralOCRClient) uploadFile(ctx context.Context, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("purpose", "ocr"); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var fileResp mistralFileResponse
	if err := c.do(req, &fileResp); err != nil {
		return "", fmt.Errorf("mistral file upload failed: %w", err)
	}
	return fileResp.ID, nil
}

func (c *MistralOCRClient) signedURL(ctx context.Context, fileID string) (string, error) {
	url := fmt.Sprintf("%s/files/%s/url?expiry=%d", c.baseURL, fileID, 1)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var urlResp mistralSignedURLResponse
	if err := c.do(req, &urlResp); err != nil {
		return "", fmt.Errorf("mistral signed url request failed: %w", err)
	}
	return urlResp.URL, nil
}

func (c *MistralOCRClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(data))
	}
	return json.Unmarshal(data, out)
}

// extractPageRange writes pages [first, last] of srcPath to destPath.
func extractPageRange(ctx context.Context, srcPath string, first, last int, destPath string) error {
	cmd := exec.CommandContext(ctx, "pdftocairo",
		"-pdf",
		"-f", strconv.Itoa(first),
		"-l", strconv.Itoa(last),
		srcPath, destPath)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to extract pages %d-%d from %s: %w", first, last, filepath.Base(srcPath), err)
	}
	return nil
}
