package service

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"

	"github.com/docmesh/ingest-be/types"
)

// extractExcel converts every sheet of an XLSX workbook into one markdown
// page: a sheet heading followed by one block per data row.
func extractExcel(filePath string) ([]types.Page, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", filePath, err)
	}
	defer f.Close()

	var pages []types.Page
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		pages = append(pages, types.Page{
			PageNumber: i + 1,
			Content:    cleanSheetText(sheetToMarkdown(sheet, rows)),
		})
	}
	return pages, nil
}

// extractLegacyExcel handles the binary .xls format.
func extractLegacyExcel(filePath string) ([]types.Page, error) {
	wb, err := xls.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", filePath, err)
	}

	var pages []types.Page
	for i := 0; i < wb.GetNumberSheets(); i++ {
		sheet, err := wb.GetSheet(i)
		if err != nil || sheet == nil {
			continue
		}
		var rows [][]string
		for _, r := range sheet.GetRows() {
			var cells []string
			for _, col := range r.GetCols() {
				cells = append(cells, col.GetString())
			}
			rows = append(rows, cells)
		}
		pages = append(pages, types.Page{
			PageNumber: i + 1,
			Content:    cleanSheetText(sheetToMarkdown(sheet.GetName(), rows)),
		})
	}
	return pages, nil
}

// sheetToMarkdown renders one sheet as markdown sections. The first row is the
// header; each following row becomes a "### Linha" block listing its non-empty
// cells.
func sheetToMarkdown(sheetName string, rows [][]string) string {
	sections := []string{"## Aba: " + sheetName}
	if len(rows) <= 1 {
		sections = append(sections, "*Esta planilha está vazia*")
		return strings.Join(sections, "\n\n")
	}

	header := rows[0]
	for idx, row := range rows[1:] {
		lines := []string{"### Linha: " + strconv.Itoa(idx)}
		for col := range header {
			val := ""
			if col < len(row) {
				val = strings.TrimSpace(row[col])
			}
			if val != "" {
				lines = append(lines, "- "+strings.TrimSpace(header[col])+": "+val)
			}
		}
		if len(lines) > 1 {
			sections = append(sections, strings.Join(lines, "\n"))
		}
	}
	return strings.Join(sections, "\n\n")
}

// extractCSV renders a CSV file as a single markdown page, one block per row.
func extractCSV(filePath string) ([]types.Page, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv %s: %w", filePath, err)
	}

	sections := []string{"# CSV Extraído"}
	if len(records) <= 1 {
		sections = append(sections, "*CSV vazio*")
	} else {
		header := records[0]
		for idx, row := range records[1:] {
			lines := []string{"### Linha: " + strconv.Itoa(idx)}
			for col := range header {
				val := ""
				if col < len(row) {
					val = strings.TrimSpace(row[col])
				}
				if val != "" {
					lines = append(lines, "- "+strings.TrimSpace(header[col])+": "+val)
				}
			}
			sections = append(sections, strings.Join(lines, "\n"))
		}
	}
	return []types.Page{{PageNumber: 1, Content: cleanSheetText(strings.Join(sections, "\n\n"))}}, nil
}

// extractDocx reads word/document.xml out of the DOCX archive and walks its
// body, keeping paragraphs and tables in document order. Headings become
// markdown headings, tables become markdown tables. DOCX has no page layout,
// so everything lands on a single page.
func extractDocx(filePath string) ([]types.Page, error) {
	reader, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx %s: %w", filePath, err)
	}
	defer reader.Close()

	var docXML []byte
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open document.xml: %w", err)
		}
		docXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read document.xml: %w", err)
		}
		break
	}
	if docXML == nil {
		return nil, fmt.Errorf("no document.xml found in %s", filePath)
	}

	parts, err := parseDocxBody(docXML)
	if err != nil {
		return nil, err
	}
	return []types.Page{{PageNumber: 1, Content: cleanSheetText(strings.Join(parts, "\n\n"))}}, nil
}

type docxRun struct {
	Text []string `xml:"t"`
}

type docxParagraph struct {
	Style struct {
		Val string `xml:"val,attr"`
	} `xml:"pPr>pStyle"`
	Runs []docxRun `xml:"r"`
}

type docxCellParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxCell struct {
	Paragraphs []docxCellParagraph `xml:"p"`
}

type docxRow struct {
	Cells []docxCell `xml:"tc"`
}

type docxTable struct {
	Rows []docxRow `xml:"tr"`
}

// parseDocxBody walks the top-level body elements. Decoding a table consumes
// its whole subtree, so paragraphs inside table cells are not seen twice.
func parseDocxBody(docXML []byte) ([]string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(docXML))
	var parts []string
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse document.xml: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "p":
			var para docxParagraph
			if err := decoder.DecodeElement(&para, &start); err != nil {
				return nil, fmt.Errorf("failed to parse paragraph: %w", err)
			}
			if text := paragraphText(para); text != "" {
				parts = append(parts, text)
			}
		case "tbl":
			var table docxTable
			if err := decoder.DecodeElement(&table, &start); err != nil {
				return nil, fmt.Errorf("failed to parse table: %w", err)
			}
			if md := tableToMarkdown(table); md != "" {
				parts = append(parts, md)
			}
		}
	}
	return parts, nil
}

func paragraphText(para docxParagraph) string {
	var b strings.Builder
	for _, run := range para.Runs {
		for _, t := range run.Text {
			b.WriteString(t)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return ""
	}
	if style := para.Style.Val; strings.HasPrefix(style, "Heading") {
		level := 1
		if n, err := strconv.Atoi(style[len("Heading"):]); err == nil && n >= 1 && n <= 6 {
			level = n
		}
		return strings.Repeat("#", level) + " " + text
	}
	return text
}

func tableToMarkdown(table docxTable) string {
	if len(table.Rows) == 0 {
		return ""
	}
	var rows []string
	header := make([]string, 0, len(table.Rows[0].Cells))
	for _, cell := range table.Rows[0].Cells {
		header = append(header, cellText(cell))
	}
	rows = append(rows, "| "+strings.Join(header, " | ")+" |")

	separator := make([]string, len(header))
	for i := range separator {
		separator[i] = "---"
	}
	rows = append(rows, "| "+strings.Join(separator, " | ")+" |")

	for _, row := range table.Rows[1:] {
		cells := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			cells = append(cells, cellText(cell))
		}
		rows = append(rows, "| "+strings.Join(cells, " | ")+" |")
	}
	return strings.Join(rows, "\n")
}

func cellText(cell docxCell) string {
	var b strings.Builder
	for _, p := range cell.Paragraphs {
		for _, run := range p.Runs {
			for _, t := range run.Text {
				b.WriteString(t)
			}
		}
	}
	if text := strings.TrimSpace(b.String()); text != "" {
		return text
	}
	return " "
}
