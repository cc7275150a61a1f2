package extract

import (
	"context"

	"github.com/omerfdemir/docvalidator/internal/entity"
)

// Engine is stage 1 of the pipeline: raw bytes -> normalized text plus
// positional metadata. Region hints come from the template's visual
// fields; extraction itself never sees the rest of the template, so its
// output is template agnostic. With no hints, every page is a whole-page
// candidate region.
type Engine interface {
	Extract(ctx context.Context, data []byte, format string, hints []entity.RegionHint) (entity.ExtractionResult, error)
}
