// Package resolve decides which existing ticket, if any, an inbound
// message continues. It is free of persistence side effects: a match on a
// closed ticket signals reopen to the caller instead of mutating state.
package resolve

import (
	"context"
	"fmt"

	"ticketdesk-go/internal/model"
	"ticketdesk-go/internal/normalize"
)

// TicketStore is the lookup surface the resolver needs. Every method
// returns (nil, nil) when no ticket matches.
type TicketStore interface {
	TicketByID(ctx context.Context, id uint64) (*model.Ticket, error)
	// TicketBySubjectAndCustomer matches the stored subject exactly
	// against the given (already normalized) subject.
	TicketBySubjectAndCustomer(ctx context.Context, subject, customerEmail string) (*model.Ticket, error)
	// LatestTicketForCustomer returns the customer's most recently
	// updated ticket regardless of subject.
	LatestTicketForCustomer(ctx context.Context, customerEmail string) (*model.Ticket, error)
}

// Resolution is the outcome of thread resolution. A nil Ticket means the
// caller should create a new one. Reopen is set when the matched ticket is
// Closed and should transition back to Open.
type Resolution struct {
	Ticket *model.Ticket
	Reopen bool
}

// Resolver correlates inbound messages with existing tickets.
type Resolver struct {
	norm  *normalize.Normalizer
	store TicketStore
}

// New creates a Resolver.
func New(norm *normalize.Normalizer, store TicketStore) *Resolver {
	return &Resolver{norm: norm, store: store}
}

// Resolve applies the resolution chain, first match wins:
//
//  1. an explicit [TKT-id] token in subject or body selects that ticket
//     regardless of subject/address; a token for a missing ticket falls
//     through rather than erroring
//  2. exact correlation on (normalized subject, customer address)
//  3. when the raw subject carries a reply/forward marker, the customer's
//     most recently updated ticket regardless of subject, since customers
//     often alter subjects when replying from mobile clients
//
// rawSubject is the unnormalized header value; body is the extracted text.
func (r *Resolver) Resolve(ctx context.Context, rawSubject, customerEmail, body string) (Resolution, error) {
	if id, ok := normalize.ParseTicketRef(rawSubject, body); ok {
		ticket, err := r.store.TicketByID(ctx, id)
		if err != nil {
			return Resolution{}, fmt.Errorf("failed to look up referenced ticket %d: %w", id, err)
		}
		if ticket != nil {
			return resolution(ticket), nil
		}
	}

	subject := r.norm.NormalizeSubject(rawSubject)

	ticket, err := r.store.TicketBySubjectAndCustomer(ctx, subject, customerEmail)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to look up ticket by subject: %w", err)
	}
	if ticket != nil {
		return resolution(ticket), nil
	}

	if r.norm.HasReplyPrefix(rawSubject) {
		ticket, err = r.store.LatestTicketForCustomer(ctx, customerEmail)
		if err != nil {
			return Resolution{}, fmt.Errorf("failed to look up latest ticket for %s: %w", customerEmail, err)
		}
		if ticket != nil {
			return resolution(ticket), nil
		}
	}

	return Resolution{}, nil
}

func resolution(ticket *model.Ticket) Resolution {
	return Resolution{
		Ticket: ticket,
		Reopen: ticket.Status == model.StatusClosed,
	}
}
