package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/common"
	"github.com/omerfdemir/docvalidator/internal/entity"
)

// Config configures the extraction engine and its external tools.
type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "tur+eng"
	TessdataDir   string
	DPI           int // rasterization DPI for scanned PDFs, default 300
	MaxPages      int // 0 = no limit

	ArtifactCacheDir string
}

// Extractor converts raw document bytes into normalized text plus
// positional metadata. Deterministic for the same bytes, modulo OCR
// engine nondeterminism, which is confined to the tesseract passes and
// logged with the chosen method.
type Extractor struct {
	cfg    Config
	runner Runner
	log    *zap.Logger
}

func NewExtractor(cfg Config, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "tur+eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.ArtifactCacheDir == "" {
		cfg.ArtifactCacheDir = "./tmp"
	}
	return &Extractor{cfg: cfg, runner: execRunner{log: log}, log: log}
}

// Extract dispatches on the declared format tag.
func (e *Extractor) Extract(ctx context.Context, data []byte, format string, hints []entity.RegionHint) (entity.ExtractionResult, error) {
	start := time.Now()
	if len(data) == 0 {
		return entity.ExtractionResult{}, fmt.Errorf("%w: empty payload", common.ErrCorruptedInput)
	}

	var (
		res entity.ExtractionResult
		err error
	)
	switch format {
	case constants.PDF:
		res, err = e.extractPDF(ctx, data, hints)
	case constants.DOCX:
		res, err = e.extractDOCX(data)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, data, hints)
	default:
		return entity.ExtractionResult{}, fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return entity.ExtractionResult{}, err
	}

	finalize(&res, hints)
	res.Duration = time.Since(start)

	if strings.TrimSpace(res.FullText) == "" && !anyInk(res.Pages) {
		return entity.ExtractionResult{}, fmt.Errorf("%w: no text or marks recognized", common.ErrEmptyContent)
	}

	e.log.Debug("extraction complete",
		zap.String("format", res.Format),
		zap.String("method", res.Method),
		zap.Int("pages", len(res.Pages)),
		zap.Int("text_bytes", len(res.FullText)),
		zap.Int64("duration_ms", res.Duration.Milliseconds()),
	)
	return res, nil
}

// finalize normalizes page text, rebuilds the full text, and guarantees
// every page carries candidate regions for the visual detector.
func finalize(res *entity.ExtractionResult, hints []entity.RegionHint) {
	var parts []string
	for i := range res.Pages {
		p := &res.Pages[i]
		p.Text = Normalize(p.Text)
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
		if len(p.Regions) == 0 {
			p.Regions = defaultRegions(p.PageNumber, hints)
		}
		for j := range p.Regions {
			if p.Regions[j].Text == "" {
				p.Regions[j].Text = cueWindow(p.Text)
			}
		}
	}
	res.FullText = strings.Join(parts, "\n\n")
}

// defaultRegions maps hints for a page into regions without pixel data;
// with no hints the whole page is the candidate region.
func defaultRegions(pageNumber int, hints []entity.RegionHint) []entity.Region {
	var regions []entity.Region
	for _, h := range hints {
		if h.Page != 0 && h.Page != pageNumber {
			continue
		}
		regions = append(regions, entity.Region{X: h.X, Y: h.Y, Width: h.Width, Height: h.Height})
	}
	if len(regions) == 0 {
		regions = []entity.Region{{X: 0, Y: 0, Width: 1, Height: 1}}
	}
	return regions
}

var markCues = []string{"imza", "paraf", "kaşe", "mühür", "signature", "initials"}

// cueWindow returns the lines of a page that mention a visual-mark cue,
// the text material the signature detector reasons over when no pixel
// data exists for the page.
func cueWindow(pageText string) string {
	if pageText == "" {
		return ""
	}
	folded := FoldForSearch(pageText)
	var out []string
	foldedLines := strings.Split(folded, "\n")
	rawLines := strings.Split(pageText, "\n")
	for i, ln := range foldedLines {
		for _, cue := range markCues {
			if strings.Contains(ln, cue) && i < len(rawLines) {
				out = append(out, strings.TrimSpace(rawLines[i]))
				break
			}
		}
	}
	return strings.Join(out, "\n")
}

func anyInk(pages []entity.Page) bool {
	for _, p := range pages {
		for _, r := range p.Regions {
			if r.InkRatio > 0 {
				return true
			}
		}
	}
	return false
}

// stage writes the payload to the artifact cache so external tools can
// read it. Caller removes the file.
func (e *Extractor) stage(data []byte, pattern string) (string, func(), error) {
	if err := os.MkdirAll(e.cfg.ArtifactCacheDir, 0o755); err != nil {
		return "", nil, err
	}
	f, err := os.CreateTemp(e.cfg.ArtifactCacheDir, pattern)
	if err != nil {
		return "", nil, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	name := f.Name()
	return name, func() { _ = os.Remove(name) }, nil
}
