// Package assign distributes new tickets across active advisers in
// round-robin order via a persisted cursor.
package assign

import (
	"context"
	"fmt"

	"ticketdesk-go/internal/model"
)

// Store is the persistence surface the allocator needs. Callers that need
// the advance to be atomic against concurrent assignments must invoke
// NextAdviser inside a transaction whose Store locks the cursor row.
type Store interface {
	// ActiveAdvisers returns the active adviser set ordered by id ascending.
	ActiveAdvisers(ctx context.Context) ([]model.User, error)
	// Cursor returns the singleton assignment cursor, creating it when absent.
	Cursor(ctx context.Context) (*model.AssignmentCursor, error)
	SaveCursor(ctx context.Context, cursor *model.AssignmentCursor) error
}

// NextAdviser returns the id of the next active adviser in round-robin
// order and advances the cursor to it in the same call. The second return
// is false when no adviser is active.
func NextAdviser(ctx context.Context, store Store) (uint64, bool, error) {
	advisers, err := store.ActiveAdvisers(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("failed to load active advisers: %w", err)
	}
	if len(advisers) == 0 {
		return 0, false, nil
	}

	cursor, err := store.Cursor(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("failed to load assignment cursor: %w", err)
	}

	next := advisers[0].ID
	if cursor.LastAssignedUser != nil {
		// An adviser deactivated since the last assignment restarts the
		// rotation at position 0.
		for i, adviser := range advisers {
			if adviser.ID == *cursor.LastAssignedUser {
				next = advisers[(i+1)%len(advisers)].ID
				break
			}
		}
	}

	cursor.LastAssignedUser = &next
	if err := store.SaveCursor(ctx, cursor); err != nil {
		return 0, false, fmt.Errorf("failed to advance assignment cursor: %w", err)
	}
	return next, true, nil
}
