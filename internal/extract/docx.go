package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/common"
	"github.com/omerfdemir/docvalidator/internal/entity"
)

// extractDOCX reads word/document.xml out of the OOXML container and
// walks its paragraphs and tables. DOCX has no fixed pagination, so the
// whole body is reported as a single page.
func (e *Extractor) extractDOCX(data []byte) (entity.ExtractionResult, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return entity.ExtractionResult{}, fmt.Errorf("%w: not a zip container: %v", common.ErrCorruptedInput, err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return entity.ExtractionResult{}, fmt.Errorf("%w: missing word/document.xml", common.ErrCorruptedInput)
	}

	rc, err := doc.Open()
	if err != nil {
		return entity.ExtractionResult{}, fmt.Errorf("%w: %v", common.ErrCorruptedInput, err)
	}
	defer rc.Close()

	text, err := docxBodyText(rc)
	if err != nil {
		return entity.ExtractionResult{}, fmt.Errorf("%w: %v", common.ErrCorruptedInput, err)
	}

	return entity.ExtractionResult{
		Format: constants.DOCX,
		Method: "docx",
		Pages:  []entity.Page{{PageNumber: 1, Text: text}},
	}, nil
}

// docxBodyText streams the WordprocessingML body: text runs (w:t)
// accumulate into paragraphs (w:p); table cells (w:tc) of a row are
// joined with " | " the way a reader would scan them.
func docxBodyText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		parts    []string
		para     strings.Builder
		rowCells []string
		cell     strings.Builder
		inCell   bool
	)

	flushPara := func() {
		if s := strings.TrimSpace(para.String()); s != "" {
			if inCell {
				cell.WriteString(s)
				cell.WriteString(" ")
			} else {
				parts = append(parts, s)
			}
		}
		para.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tc":
				inCell = true
			case "t":
				var s string
				if err := dec.DecodeElement(&s, &t); err != nil {
					return "", err
				}
				para.WriteString(s)
			case "tab":
				para.WriteString(" ")
			case "br":
				para.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				flushPara()
			case "tc":
				flushPara()
				rowCells = append(rowCells, strings.TrimSpace(cell.String()))
				cell.Reset()
				inCell = false
			case "tr":
				if row := strings.TrimSpace(strings.Join(rowCells, " | ")); row != "" {
					parts = append(parts, row)
				}
				rowCells = nil
			}
		}
	}
	flushPara()

	return strings.Join(parts, "\n"), nil
}
