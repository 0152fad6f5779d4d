package ports

import (
	"context"
	"inboxlens/internal/types"
)

// Notifier fans a resolved thread result back out to the host UI.
// It is invoked at most once per flush per key, for successful results only.
type Notifier interface {
	Notify(ctx context.Context, key string, data types.ThreadData) error
}
