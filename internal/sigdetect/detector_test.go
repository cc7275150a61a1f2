package sigdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/entity"
)

func sigSpec(hint *entity.RegionHint) entity.FieldSpec {
	return entity.FieldSpec{
		FieldID: "imza", Label: "İmza",
		Type: constants.FieldTypeSignature, Required: true,
		RegionHint: hint,
	}
}

func pageWith(regions ...entity.Region) entity.ExtractionResult {
	return entity.ExtractionResult{
		Format: constants.PDF,
		Pages:  []entity.Page{{PageNumber: 1, Regions: regions}},
	}
}

func TestDetect_BlankRegionIsNotFound(t *testing.T) {
	d := NewDetector(nil)
	ex := pageWith(entity.Region{X: 0.5, Y: 0.7, Width: 0.4, Height: 0.2, InkRatio: 0.001})

	matches := d.Detect(ex, []entity.FieldSpec{sigSpec(nil)})
	require.Len(t, matches, 1)

	fm := matches[0]
	assert.False(t, fm.Found)
	assert.Equal(t, "no mark detected", fm.Issue)
	assert.Nil(t, fm.Value)
}

func TestDetect_StrongInkIsFound(t *testing.T) {
	d := NewDetector(nil)
	ex := pageWith(entity.Region{X: 0.5, Y: 0.7, Width: 0.4, Height: 0.2, InkRatio: 0.12})

	matches := d.Detect(ex, []entity.FieldSpec{sigSpec(nil)})
	require.Len(t, matches, 1)

	fm := matches[0]
	assert.True(t, fm.Found)
	assert.GreaterOrEqual(t, fm.Confidence, constants.ReviewableConfidence)
	assert.Nil(t, fm.Value)
}

func TestDetect_FaintInkIsUncertain(t *testing.T) {
	d := NewDetector(nil)
	ex := pageWith(entity.Region{X: 0.5, Y: 0.7, Width: 0.4, Height: 0.2, InkRatio: 0.02})

	matches := d.Detect(ex, []entity.FieldSpec{sigSpec(nil)})
	require.Len(t, matches, 1)

	fm := matches[0]
	assert.True(t, fm.Found)
	assert.Less(t, fm.Confidence, constants.ReviewableConfidence)
	assert.Equal(t, "mark present but uncertain", fm.Issue)
}

func TestDetect_NoRegionsIsNotFound(t *testing.T) {
	d := NewDetector(nil)
	ex := entity.ExtractionResult{Format: constants.DOCX, Pages: []entity.Page{{PageNumber: 1}}}

	matches := d.Detect(ex, []entity.FieldSpec{sigSpec(nil)})
	require.Len(t, matches, 1)
	assert.False(t, matches[0].Found)
	assert.Equal(t, "no mark detected", matches[0].Issue)
}

func TestDetect_CueTextWithContent(t *testing.T) {
	d := NewDetector(nil)
	ex := pageWith(entity.Region{X: 0, Y: 0, Width: 1, Height: 1, Text: "İmza: Mehmet Yılmaz"})

	matches := d.Detect(ex, []entity.FieldSpec{sigSpec(nil)})
	require.Len(t, matches, 1)
	assert.True(t, matches[0].Found)
	assert.Equal(t, "mark present but uncertain", matches[0].Issue)
}

func TestDetect_BareCueLabelIsNotFound(t *testing.T) {
	d := NewDetector(nil)
	ex := pageWith(entity.Region{X: 0, Y: 0, Width: 1, Height: 1, Text: "İmza:"})

	matches := d.Detect(ex, []entity.FieldSpec{sigSpec(nil)})
	require.Len(t, matches, 1)
	assert.False(t, matches[0].Found)
}

func TestDetect_HintSelectsMatchingRegion(t *testing.T) {
	d := NewDetector(nil)
	hint := &entity.RegionHint{Page: 1, X: 0.55, Y: 0.65, Width: 0.4, Height: 0.25}
	ex := pageWith(
		entity.Region{X: 0.05, Y: 0.65, Width: 0.4, Height: 0.25, InkRatio: 0.2}, // other party's zone
		entity.Region{X: 0.55, Y: 0.65, Width: 0.4, Height: 0.25, InkRatio: 0.0},
	)

	matches := d.Detect(ex, []entity.FieldSpec{sigSpec(hint)})
	require.Len(t, matches, 1)
	assert.False(t, matches[0].Found, "ink in another field's zone must not count")
}

func TestDetect_SkipsNonVisualSpecs(t *testing.T) {
	d := NewDetector(nil)
	specs := []entity.FieldSpec{
		{FieldID: "vergi_no", Label: "Vergi No", Type: constants.FieldTypeNumber},
		sigSpec(nil),
	}
	matches := d.Detect(pageWith(entity.Region{InkRatio: 0.1, Width: 1, Height: 1}), specs)
	require.Len(t, matches, 1)
	assert.Equal(t, "imza", matches[0].FieldID)
}

func TestInkConfidenceCap(t *testing.T) {
	assert.Equal(t, 95, inkConfidence(0.5))
	assert.Equal(t, 70, inkConfidence(0.05))
}
