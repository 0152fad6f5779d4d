package ports

import (
	"context"
	"inboxlens/internal/types"
)

// AnalysisAPI is the authenticated upstream surface of the classification
// service. Implementations MUST reject with types.ErrNoSession when no valid
// credentials are configured.
type AnalysisAPI interface {
	// AnalyzeBatch submits all ids in one request and returns one result per
	// id, each tagged success or failure.
	AnalyzeBatch(ctx context.Context, ids []string) ([]types.AnalysisResult, error)

	// ListRecords returns the server's full record list verbatim.
	ListRecords(ctx context.Context) ([]map[string]any, error)

	// SubmitCorrections delivers all edits in one request and waits for the
	// server to accept them.
	SubmitCorrections(ctx context.Context, edits []types.Correction) error

	// EnqueueCorrections hands the edits to a fire-and-forget sender for use
	// while the hosting context is being torn down. The response cannot be
	// observed; the return value reports only whether the enqueue was
	// accepted.
	EnqueueCorrections(edits []types.Correction) bool
}
