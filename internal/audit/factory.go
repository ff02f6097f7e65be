package audit

import (
	"context"
	"strings"
)

// NewStore creates a postgres-backed store when configured, otherwise an
// in-memory ring bounded by maxRecords.
func NewStore(ctx context.Context, databaseURL string, maxRecords int) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(maxRecords), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
