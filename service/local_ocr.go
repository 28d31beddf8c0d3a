package service

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/docmesh/ingest-be/types"
	"github.com/docmesh/ingest-be/utils"
)

// localOCRLanguages is the tesseract language pack selection, bilingual
// Portuguese plus English.
const localOCRLanguages = "por+eng"

// extractLocalOCR rasterizes each page and runs tesseract on it. Any failure
// aborts the strategy; the orchestrator moves on to the next stage.
func extractLocalOCR(ctx context.Context, filePath string) ([]types.Page, error) {
	total, err := getNumPages(filePath)
	if err != nil {
		return nil, err
	}

	tempDir, err := os.MkdirTemp("", "ocr-"+utils.GetFileNameWithoutExt(filePath)+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	pages := make([]types.Page, 0, total)
	for pageNum := 1; pageNum <= total; pageNum++ {
		imagePath, err := rasterizePage(ctx, filePath, pageNum, tempDir)
		if err != nil {
			return nil, err
		}

		ocrCmd := exec.CommandContext(ctx, "tesseract",
			imagePath,
			"stdout",
			"-l", localOCRLanguages,
			"--oem", "3",
			"--psm", "3",
		)
		var ocrOut bytes.Buffer
		ocrCmd.Stdout = &ocrOut
		if err := ocrCmd.Run(); err != nil {
			return nil, fmt.Errorf("failed to run tesseract on page %d: %w", pageNum, err)
		}
		pages = append(pages, types.Page{PageNumber: pageNum, Content: cleanText(ocrOut.String())})
	}
	return pages, nil
}

// rasterizePage converts a single PDF page to a 300dpi JPEG in dir and returns
// the image path.
func rasterizePage(ctx context.Context, pdfPath string, pageNumber int, dir string) (string, error) {
	prefix := filepath.Join(dir, fmt.Sprintf("page-%d", pageNumber))
	convertCmd := exec.CommandContext(ctx, "pdftoppm",
		"-f", strconv.Itoa(pageNumber),
		"-l", strconv.Itoa(pageNumber),
		"-r", "300",
		"-jpeg",
		pdfPath, prefix)
	if err := convertCmd.Run(); err != nil {
		return "", fmt.Errorf("failed to convert page %d to image: %w", pageNumber, err)
	}
	matches, err := filepath.Glob(prefix + "-*.jpg")
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("no image produced for page %d", pageNumber)
	}
	return matches[0], nil
}

var pdfinfoPagesRe = regexp.MustCompile(`Pages:\s+(\d+)`)

// getNumPages uses pdfinfo to get the total number of pages in a PDF file.
// It works on scanned PDFs whose text layer is absent or broken.
func getNumPages(pdfPath string) (int, error) {
	cmd := exec.Command("pdfinfo", pdfPath)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("error running pdfinfo: %w", err)
	}

	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		if matches := pdfinfoPagesRe.FindStringSubmatch(scanner.Text()); len(matches) == 2 {
			return strconv.Atoi(matches[1])
		}
	}
	return 0, fmt.Errorf("unable to determine page count from pdfinfo")
}
