package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/docmesh/ingest-be/types"
)

var (
	// ErrUnsupportedFileType is returned for extensions no extractor handles.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrFileNotFound is returned when the input path does not point to a
	// readable file.
	ErrFileNotFound = errors.New("file not found")
)

// emptyPageFallbackThreshold is the number of empty pages in a native text
// extraction that disqualifies the result. One empty page is tolerated.
const emptyPageFallbackThreshold = 2

// pdfStrategy extracts ordered page content from a PDF file.
type pdfStrategy func(ctx context.Context, filePath string) ([]types.Page, error)

// extractStage identifies one strategy in the PDF fallback chain, ordered by
// cost: free embedded text, metered external OCR, local compute OCR, metered
// per-page vision OCR.
type extractStage int

const (
	stageNativeText extractStage = iota
	stageMistralOCR
	stageLocalOCR
	stageVisionOCR
)

func (s extractStage) String() string {
	switch s {
	case stageNativeText:
		return "native-text"
	case stageMistralOCR:
		return "mistral-ocr"
	case stageLocalOCR:
		return "local-ocr"
	case stageVisionOCR:
		return "vision-ocr"
	}
	return "unknown"
}

// ExtractService turns heterogeneous documents into ordered page content.
// For PDFs it walks the fallback chain; other formats dispatch directly to a
// single structured extractor.
type ExtractService struct {
	strategies map[extractStage]pdfStrategy
}

func NewExtractService(mistral *MistralOCRClient, vision *VisionOCRService) *ExtractService {
	return &ExtractService{
		strategies: map[extractStage]pdfStrategy{
			stageNativeText: extractNativeText,
			stageMistralOCR: mistral.ExtractPages,
			stageLocalOCR:   extractLocalOCR,
			stageVisionOCR:  vision.ExtractPages,
		},
	}
}

// ProcessFile extracts the textual content of a file. It fails only when the
// file is missing, its extension is unsupported, or a non-PDF extractor (or
// the terminal PDF fallback stage) errors out.
func (s *ExtractService) ProcessFile(ctx context.Context, filePath string) (*types.ExtractionResult, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filePath)
	}

	var (
		pages []types.Page
		err   error
	)
	switch FileExtension(filePath) {
	case ".txt", ".md":
		pages, err = extractPlainText(filePath)
	case ".pdf":
		pages, err = s.extractPDF(ctx, filePath)
	case ".docx":
		pages, err = extractDocx(filePath)
	case ".xlsx":
		pages, err = extractExcel(filePath)
	case ".xls":
		pages, err = extractLegacyExcel(filePath)
	case ".csv":
		pages, err = extractCSV(filePath)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, filepath.Ext(filePath))
	}
	if err != nil {
		return nil, err
	}

	return &types.ExtractionResult{
		Status:   "success",
		FileName: filepath.Base(filePath),
		Pages:    dropEmptyPages(pages),
	}, nil
}

// FileExtension returns the lower-cased extension of a path, including the dot.
func FileExtension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

var supportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".pdf":  true,
	".docx": true,
	".xlsx": true,
	".xls":  true,
	".csv":  true,
}

// IsSupported reports whether a file extension has an extractor.
func IsSupported(path string) bool {
	return supportedExtensions[FileExtension(path)]
}

// extractPDF runs the fallback chain as a small state machine. Each stage
// either accepts its own result or names the next stage; only the terminal
// stage may fail the whole file.
func (s *ExtractService) extractPDF(ctx context.Context, filePath string) ([]types.Page, error) {
	stage := stageNativeText
	for {
		pages, err := s.strategies[stage](ctx, filePath)
		next, fallback := nextStage(stage, pages, err)
		if !fallback {
			if err != nil {
				return nil, fmt.Errorf("%s extraction failed for %s: %w", stage, filepath.Base(filePath), err)
			}
			return pages, nil
		}
		if err != nil {
			log.Printf("Warning: %s failed for %s: %v, trying %s", stage, filepath.Base(filePath), err, next)
		} else {
			log.Printf("Insufficient content from %s for %s, trying %s", stage, filepath.Base(filePath), next)
		}
		stage = next
	}
}

// nextStage is the sufficiency predicate for each transition. It reports the
// stage to fall back to and whether falling back applies at all.
func nextStage(stage extractStage, pages []types.Page, err error) (extractStage, bool) {
	switch stage {
	case stageNativeText:
		if err != nil || countEmptyPages(pages) >= emptyPageFallbackThreshold {
			return stageMistralOCR, true
		}
	case stageMistralOCR:
		if err != nil || !hasContent(pages) {
			return stageLocalOCR, true
		}
	case stageLocalOCR:
		if err != nil || !hasContent(pages) {
			return stageVisionOCR, true
		}
	}
	return stage, false
}

func countEmptyPages(pages []types.Page) int {
	count := 0
	for _, p := range pages {
		if strings.TrimSpace(p.Content) == "" {
			count++
		}
	}
	return count
}

func hasContent(pages []types.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Content) != "" {
			return true
		}
	}
	return false
}

// dropEmptyPages filters out pages whose normalized content is empty.
func dropEmptyPages(pages []types.Page) []types.Page {
	kept := make([]types.Page, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func extractPlainText(filePath string) ([]types.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	return []types.Page{{PageNumber: 1, Content: cleanText(string(data))}}, nil
}

// cleanText collapses all whitespace runs into single spaces and strips
// control and other non-printable characters.
func cleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsGraphic(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

var (
	sheetGapRe   = regexp.MustCompile(`([^\n])\n(## Aba:)`)
	rowGapRe     = regexp.MustCompile(`([^\n])\n(### Linha:)`)
	newlineRunRe = regexp.MustCompile(`\n{4,}`)
	headingRe    = regexp.MustCompile(`(#+)([^ #\n])`)
	spaceRunRe   = regexp.MustCompile(`[ \t]+`)
)

// cleanSheetText normalizes structured sheet markdown while preserving line
// structure: sheet and row headings get surrounding blank lines, long blank
// runs shrink, and disallowed characters are stripped.
func cleanSheetText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = sheetGapRe.ReplaceAllString(text, "$1\n\n$2")
	text = rowGapRe.ReplaceAllString(text, "$1\n\n$2")
	text = newlineRunRe.ReplaceAllString(text, "\n\n\n")
	text = headingRe.ReplaceAllString(text, "$1 $2")
	text = spaceRunRe.ReplaceAllString(text, " ")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' || unicode.IsGraphic(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

var markdownNewlineRunRe = regexp.MustCompile(`\n{3,}`)

// normalizeMarkdown is the gentler pass for OCR output that is already
// markdown: line endings are normalized and control characters stripped, but
// line structure survives.
func normalizeMarkdown(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' || unicode.IsGraphic(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(markdownNewlineRunRe.ReplaceAllString(b.String(), "\n\n"))
}
