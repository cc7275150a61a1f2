package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/omerfdemir/docvalidator/internal/entity"
)

// Service produces XLSX bytes for validation results, for reviewers who
// live in spreadsheets.
type Service struct {
	log *zap.Logger
}

func NewService(log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{log: log}
}

// ResultXLSX renders one result as a workbook: a summary block followed
// by the per-field verdicts in template order.
func (s *Service) ResultXLSX(documentID string, tpl entity.DocumentTemplate, result entity.ValidationResult) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Validation"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defaultIndex, _ := f.GetSheetIndex("Sheet1"); defaultIndex != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	write(1, 1, "Document")
	write(2, 1, documentID)
	write(1, 2, "Template")
	write(2, 2, tpl.Name)
	write(1, 3, "Overall Score")
	write(2, 3, result.OverallScore)
	write(1, 4, "Valid")
	write(2, 4, result.IsValid)
	write(1, 5, "Checked At")
	write(2, 5, result.Timestamp.Format("2006-01-02 15:04:05"))

	labels := make(map[string]string, len(tpl.Fields))
	required := make(map[string]bool, len(tpl.Fields))
	for _, spec := range tpl.Fields {
		labels[spec.FieldID] = spec.Label
		required[spec.FieldID] = spec.Required
	}

	headers := []string{"Field", "Label", "Required", "Found", "Value", "Confidence", "Issue"}
	const headerRow = 7
	for i, h := range headers {
		write(i+1, headerRow, h)
	}

	row := headerRow + 1
	for _, fm := range result.Fields {
		write(1, row, fm.FieldID)
		write(2, row, labels[fm.FieldID])
		write(3, row, required[fm.FieldID])
		write(4, row, fm.Found)
		if fm.Value != nil {
			write(5, row, *fm.Value)
		}
		write(6, row, fm.Confidence)
		write(7, row, fm.Issue)
		row++
	}

	row++
	writeList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		write(1, row, title)
		for _, item := range items {
			write(2, row, item)
			row++
		}
		row++
	}
	writeList("Errors", result.Errors)
	writeList("Warnings", result.Warnings)
	writeList("Recommendations", result.Recommendations)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.log.Debug("result exported",
		zap.String("document_id", documentID),
		zap.Int("fields", len(result.Fields)),
		zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}
