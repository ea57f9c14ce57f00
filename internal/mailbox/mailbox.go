// Package mailbox fetches raw inbound messages from a mail provider and
// parses them into structured form.
package mailbox

import (
	"context"
	"time"

	"ticketdesk-go/internal/model"
)

// Source is an inbound mailbox. FetchRecent returns candidate messages
// received since the given time; redelivery of already-processed messages
// is expected and handled by the pipeline's dedup ledger.
type Source interface {
	Connect(ctx context.Context) error
	FetchRecent(ctx context.Context, since time.Time) ([]model.RawMessage, error)
	Close() error
}
