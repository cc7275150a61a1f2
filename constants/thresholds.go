package constants

// Confidence thresholds and scoring weights. These are tunable defaults,
// not fixed law; the pipeline config may override them.
const (
	// MinFoundConfidence is the floor below which a candidate value is
	// reported as not found.
	MinFoundConfidence = 50

	// ReviewableConfidence is the threshold below which a found field
	// carries an issue string for human review.
	ReviewableConfidence = 80

	// MinRequiredConfidence is the per-field confidence a required field
	// needs for the document to count as valid.
	MinRequiredConfidence = 60

	// OptionalWeight is the score contribution of optional fields
	// relative to required ones.
	OptionalWeight = 0.5

	// OCRConfidenceCeiling caps the confidence of values matched on
	// OCR-derived text; optical recognition is never fully trusted.
	OCRConfidenceCeiling = 85
)
