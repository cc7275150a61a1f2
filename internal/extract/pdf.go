package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/common"
	"github.com/omerfdemir/docvalidator/internal/entity"
)

// minPDFTextRunes decides between the direct text path and the OCR
// fallback for scanned documents.
const minPDFTextRunes = 32

func (e *Extractor) extractPDF(ctx context.Context, data []byte, hints []entity.RegionHint) (entity.ExtractionResult, error) {
	// Structural sanity first: a PDF pdfcpu cannot page-count will not
	// become valid on retry.
	pageCount, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return entity.ExtractionResult{}, fmt.Errorf("%w: %v", common.ErrCorruptedInput, err)
	}
	if pageCount == 0 {
		return entity.ExtractionResult{}, fmt.Errorf("%w: pdf has no pages", common.ErrEmptyContent)
	}

	path, cleanup, err := e.stage(data, "dv-*.pdf")
	if err != nil {
		return entity.ExtractionResult{}, err
	}
	defer cleanup()

	res := entity.ExtractionResult{Format: constants.PDF}

	text, warns, err := e.pdfToText(ctx, path)
	if err != nil {
		return entity.ExtractionResult{}, fmt.Errorf("%w: pdftotext: %v", common.ErrCorruptedInput, err)
	}
	res.Warnings = append(res.Warnings, warns...)

	if len(strings.TrimSpace(text)) >= minPDFTextRunes {
		res.Method = "pdf-text"
		// A form feed is pdftotext's page separator.
		for i, pageText := range strings.Split(text, "\f") {
			if i >= pageCount {
				break
			}
			res.Pages = append(res.Pages, entity.Page{PageNumber: i + 1, Text: pageText})
		}
		// Visual fields still need pixel evidence; render pages for the
		// hinted zones when the template declares any.
		if len(hints) > 0 {
			if err := e.attachRenderedRegions(ctx, path, res.Pages, hints); err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("region render: %v", err))
			}
		}
		return res, nil
	}

	// Image-only document: rasterize and OCR each page.
	res.Method = "pdf-ocr"
	pages, warns, err := e.pdfToOCR(ctx, path, hints)
	if err != nil {
		return entity.ExtractionResult{}, err
	}
	res.Pages = pages
	res.Warnings = append(res.Warnings, warns...)
	return res, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (string, []string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", []string{string(errb)}, err
	}
	return reBoxNoise.ReplaceAllString(string(out), ""), nil, nil
}

// pdfToOCR rasterizes every page and runs tesseract over each image.
// Tesseract output is inherently nondeterministic across versions; the
// method tag and per-page warnings keep that visible.
func (e *Extractor) pdfToOCR(ctx context.Context, path string, hints []entity.RegionHint) ([]entity.Page, []string, error) {
	images, cleanup, err := e.renderPages(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", common.ErrCorruptedInput, err)
	}
	defer cleanup()

	var pages []entity.Page
	var warns []string
	for i, img := range images {
		page := entity.Page{PageNumber: i + 1, OCR: true}

		txt, w, err := e.tesseractOCR(ctx, img)
		warns = append(warns, w...)
		if err != nil {
			warns = append(warns, fmt.Sprintf("page %d ocr: %v", i+1, err))
		} else {
			page.Text = txt
		}

		regions, err := regionsFromImageFile(img, i+1, hints)
		if err != nil {
			warns = append(warns, fmt.Sprintf("page %d ink analysis: %v", i+1, err))
		} else {
			page.Regions = regions
		}
		pages = append(pages, page)
	}
	return pages, warns, nil
}

// attachRenderedRegions rasterizes a text-bearing PDF only to measure ink
// in the hinted zones, leaving the page text untouched.
func (e *Extractor) attachRenderedRegions(ctx context.Context, path string, pages []entity.Page, hints []entity.RegionHint) error {
	images, cleanup, err := e.renderPages(ctx, path)
	if err != nil {
		return err
	}
	defer cleanup()

	for i := range pages {
		if i >= len(images) {
			break
		}
		regions, err := regionsFromImageFile(images[i], pages[i].PageNumber, hints)
		if err != nil {
			e.log.Warn("ink analysis failed", zap.Int("page", pages[i].PageNumber), zap.Error(err))
			continue
		}
		pages[i].Regions = regions
	}
	return nil
}

func (e *Extractor) renderPages(ctx context.Context, path string) ([]string, func(), error) {
	tmpDir, err := os.MkdirTemp(e.cfg.ArtifactCacheDir, "dv-pp-*")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("pdftoppm: %s: %w", strings.TrimSpace(string(errb)), err)
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		cleanup()
		return nil, nil, fmt.Errorf("pdftoppm produced no images")
	}
	return matches, cleanup, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	return reBoxNoise.ReplaceAllString(string(out), ""), nil, nil
}
