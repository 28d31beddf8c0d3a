package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVisionService(t *testing.T, handler http.HandlerFunc) *VisionOCRService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc := NewVisionOCRService(srv.URL, "test-key", "")
	svc.numPages = func(string) (int, error) { return 2, nil }
	svc.rasterize = func(_ context.Context, _ string, pageNumber int, dir string) (string, error) {
		path := filepath.Join(dir, fmt.Sprintf("page-%d.jpg", pageNumber))
		return path, os.WriteFile(path, []byte("jpeg"), 0644)
	}
	return svc
}

func TestVisionExtractPages(t *testing.T) {
	var requests int
	svc := newTestVisionService(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req["model"])

		json.NewEncoder(w).Encode(map[string]any{
			"id":     "resp-1",
			"object": "chat.completion",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]any{
						"role":    "assistant",
						"content": "# Página\r\n\r\n\r\n\r\nconteúdo",
					},
				},
			},
		})
	})

	pages, err := svc.ExtractPages(context.Background(), "doc.pdf")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 2, requests, "one request per page")
	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Equal(t, 2, pages[1].PageNumber)
	assert.Equal(t, "# Página\n\nconteúdo", pages[0].Content)
}

func TestVisionExtractPagesKeepsPageErrorsInline(t *testing.T) {
	svc := newTestVisionService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model overloaded"}}`, http.StatusServiceUnavailable)
	})

	pages, err := svc.ExtractPages(context.Background(), "doc.pdf")
	require.NoError(t, err, "a failed page is captured inline, not escalated")
	require.Len(t, pages, 2)
	for _, p := range pages {
		assert.Contains(t, p.Content, "Error extracting text with vision model:")
	}
}

func TestVisionExtractPagesRasterizeFailureIsFatal(t *testing.T) {
	svc := newTestVisionService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected when rasterization fails")
	})
	svc.rasterize = func(context.Context, string, int, string) (string, error) {
		return "", errors.New("pdftoppm missing")
	}

	_, err := svc.ExtractPages(context.Background(), "doc.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftoppm missing")
}
