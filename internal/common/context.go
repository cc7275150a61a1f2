package common

import "context"

type contextKey string

const contextKeyJobID contextKey = "job_id"

// WithJobID adds a job ID to the context for downstream logging.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, contextKeyJobID, jobID)
}

// JobIDFromContext extracts the job ID from context; empty when unset.
func JobIDFromContext(ctx context.Context) string {
	if jobID, ok := ctx.Value(contextKeyJobID).(string); ok {
		return jobID
	}
	return ""
}
