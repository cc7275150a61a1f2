package extract

import (
	"context"
	"fmt"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/common"
	"github.com/omerfdemir/docvalidator/internal/entity"
)

func (e *Extractor) extractImage(ctx context.Context, data []byte, hints []entity.RegionHint) (entity.ExtractionResult, error) {
	path, cleanup, err := e.stage(data, "dv-*.img")
	if err != nil {
		return entity.ExtractionResult{}, err
	}
	defer cleanup()

	res := entity.ExtractionResult{Format: constants.IMAGE, Method: "image-ocr"}
	page := entity.Page{PageNumber: 1, OCR: true}

	// Decode first: an undecodable image is corrupted input, not an OCR
	// problem.
	regions, err := regionsFromImageFile(path, 1, hints)
	if err != nil {
		return entity.ExtractionResult{}, fmt.Errorf("%w: %v", common.ErrCorruptedInput, err)
	}
	page.Regions = regions

	txt, warns, err := e.tesseractOCR(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("ocr: %v", err))
	} else {
		page.Text = txt
	}

	res.Pages = []entity.Page{page}
	return res, nil
}
