// Package repository is the gorm-backed persistence layer. It implements
// the store interfaces consumed by the pipeline, resolver and assigner.
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ticketdesk-go/internal/model"
	"ticketdesk-go/internal/pipeline"
)

type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Transact runs fn against a transaction-scoped Repository. The assignment
// cursor read inside the transaction takes a row lock, so concurrent
// ticket creations serialize on it.
func (r *Repository) Transact(ctx context.Context, fn func(pipeline.Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) CreateIngest(ctx context.Context, record *model.IngestRecord) error {
	result := r.db.WithContext(ctx).Create(record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("ingest record for %s: %w", record.ProviderMessageID, model.ErrDuplicateIngest)
		}
		return fmt.Errorf("failed to create ingest record: %w", result.Error)
	}
	return nil
}

func (r *Repository) UpdateIngest(ctx context.Context, record *model.IngestRecord) error {
	result := r.db.WithContext(ctx).Save(record)
	if result.Error != nil {
		return fmt.Errorf("failed to update ingest record: %w", result.Error)
	}
	return nil
}

func (r *Repository) IngestExists(ctx context.Context, providerMessageID string) (bool, error) {
	var record model.IngestRecord
	result := r.db.WithContext(ctx).Where("provider_message_id = ?", providerMessageID).First(&record)
	if result.Error == nil {
		return true, nil
	}
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("database error checking ingest ledger: %w", result.Error)
}

func (r *Repository) IsBlocked(ctx context.Context, email string) (bool, error) {
	var blocked model.BlockedSender
	result := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&blocked)
	if result.Error == nil {
		return true, nil
	}
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("database error checking blocklist: %w", result.Error)
}

func (r *Repository) TicketByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	var ticket model.Ticket
	result := r.db.WithContext(ctx).First(&ticket, id)
	if result.Error == nil {
		return &ticket, nil
	}
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("database error fetching ticket %d: %w", id, result.Error)
}

// TicketBySubjectAndCustomer matches the stored subject exactly against
// the normalized subject supplied by the resolver.
func (r *Repository) TicketBySubjectAndCustomer(ctx context.Context, subject, customerEmail string) (*model.Ticket, error) {
	var ticket model.Ticket
	result := r.db.WithContext(ctx).
		Where("subject = ? AND customer_email = ?", subject, customerEmail).
		Order("updated_at DESC").
		First(&ticket)
	if result.Error == nil {
		return &ticket, nil
	}
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("database error correlating ticket: %w", result.Error)
}

func (r *Repository) LatestTicketForCustomer(ctx context.Context, customerEmail string) (*model.Ticket, error) {
	var ticket model.Ticket
	result := r.db.WithContext(ctx).
		Where("customer_email = ?", customerEmail).
		Order("updated_at DESC").
		First(&ticket)
	if result.Error == nil {
		return &ticket, nil
	}
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("database error fetching latest ticket: %w", result.Error)
}

func (r *Repository) OpenTicketByChannel(ctx context.Context, channel model.ChannelType, identifier string) (*model.Ticket, error) {
	var ticket model.Ticket
	result := r.db.WithContext(ctx).
		Where("channel = ? AND channel_identifier = ? AND status IN ?",
			channel, identifier, []model.TicketStatus{model.StatusOpen, model.StatusPending}).
		Order("updated_at DESC").
		First(&ticket)
	if result.Error == nil {
		return &ticket, nil
	}
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("database error fetching channel ticket: %w", result.Error)
}

func (r *Repository) CreateTicket(ctx context.Context, ticket *model.Ticket) error {
	result := r.db.WithContext(ctx).Create(ticket)
	if result.Error != nil {
		return fmt.Errorf("failed to create ticket: %w", result.Error)
	}
	return nil
}

func (r *Repository) UpdateTicket(ctx context.Context, ticket *model.Ticket) error {
	result := r.db.WithContext(ctx).Save(ticket)
	if result.Error != nil {
		return fmt.Errorf("failed to update ticket: %w", result.Error)
	}
	return nil
}

func (r *Repository) CreateMessage(ctx context.Context, message *model.TicketMessage) error {
	result := r.db.WithContext(ctx).Create(message)
	if result.Error != nil {
		return fmt.Errorf("failed to create ticket message: %w", result.Error)
	}
	return nil
}

func (r *Repository) LanguageIDByName(ctx context.Context, name string) (*uint, error) {
	var category model.CategoryLanguage
	return r.categoryID(ctx, &category, name, func() uint { return category.ID })
}

func (r *Repository) VOCIDByName(ctx context.Context, name string) (*uint, error) {
	var category model.CategoryVOC
	return r.categoryID(ctx, &category, name, func() uint { return category.ID })
}

func (r *Repository) PriorityIDByName(ctx context.Context, name string) (*uint, error) {
	var category model.CategoryPriority
	return r.categoryID(ctx, &category, name, func() uint { return category.ID })
}

func (r *Repository) categoryID(ctx context.Context, dest interface{}, name string, id func() uint) (*uint, error) {
	result := r.db.WithContext(ctx).Where("name = ?", name).First(dest)
	if result.Error == nil {
		v := id()
		return &v, nil
	}
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("database error looking up category %q: %w", name, result.Error)
}

func (r *Repository) ActiveAdvisers(ctx context.Context) ([]model.User, error) {
	var advisers []model.User
	result := r.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", model.RoleAdviser, true).
		Order("id ASC").
		Find(&advisers)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list active advisers: %w", result.Error)
	}
	return advisers, nil
}

// Cursor loads the singleton assignment cursor row, creating it on first
// use. Inside a transaction the read is locked FOR UPDATE.
func (r *Repository) Cursor(ctx context.Context) (*model.AssignmentCursor, error) {
	var cursor model.AssignmentCursor
	result := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", 1).
		First(&cursor)
	if result.Error == nil {
		return &cursor, nil
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error fetching assignment cursor: %w", result.Error)
	}

	cursor = model.AssignmentCursor{ID: 1}
	if err := r.db.WithContext(ctx).Create(&cursor).Error; err != nil {
		// A concurrent first assignment can win the insert; re-read the
		// row it created instead of failing this ingestion.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if err := r.db.WithContext(ctx).
				Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", 1).
				First(&cursor).Error; err != nil {
				return nil, fmt.Errorf("failed to re-read assignment cursor: %w", err)
			}
			return &cursor, nil
		}
		return nil, fmt.Errorf("failed to create assignment cursor: %w", err)
	}
	return &cursor, nil
}

func (r *Repository) SaveCursor(ctx context.Context, cursor *model.AssignmentCursor) error {
	result := r.db.WithContext(ctx).Save(cursor)
	if result.Error != nil {
		return fmt.Errorf("failed to save assignment cursor: %w", result.Error)
	}
	return nil
}

// ListIngestRecords returns the most recent ledger entries, optionally
// filtered by status.
func (r *Repository) ListIngestRecords(ctx context.Context, status model.IngestStatus, limit int) ([]model.IngestRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := r.db.WithContext(ctx).Order("id DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var records []model.IngestRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list ingest records: %w", err)
	}
	return records, nil
}

func (r *Repository) IngestRecordByID(ctx context.Context, id uint64) (*model.IngestRecord, error) {
	var record model.IngestRecord
	result := r.db.WithContext(ctx).First(&record, id)
	if result.Error == nil {
		return &record, nil
	}
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("database error fetching ingest record %d: %w", id, result.Error)
}

// ListTickets returns tickets newest-first, optionally filtered by status.
func (r *Repository) ListTickets(ctx context.Context, status model.TicketStatus, limit int) ([]model.Ticket, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := r.db.WithContext(ctx).Order("updated_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var tickets []model.Ticket
	if err := q.Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

// TicketWithMessages loads a ticket and its messages ordered by sent time.
func (r *Repository) TicketWithMessages(ctx context.Context, id uint64) (*model.Ticket, []model.TicketMessage, error) {
	ticket, err := r.TicketByID(ctx, id)
	if err != nil || ticket == nil {
		return ticket, nil, err
	}
	var messages []model.TicketMessage
	if err := r.db.WithContext(ctx).
		Where("ticket_id = ?", id).
		Order("sent_at ASC").
		Find(&messages).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load ticket messages: %w", err)
	}
	return ticket, messages, nil
}

func (r *Repository) ListBlockedSenders(ctx context.Context) ([]model.BlockedSender, error) {
	var blocked []model.BlockedSender
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&blocked).Error; err != nil {
		return nil, fmt.Errorf("failed to list blocked senders: %w", err)
	}
	return blocked, nil
}

func (r *Repository) AddBlockedSender(ctx context.Context, sender *model.BlockedSender) error {
	result := r.db.WithContext(ctx).Create(sender)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("sender %s is already blocked", sender.Email)
		}
		return fmt.Errorf("failed to block sender: %w", result.Error)
	}
	return nil
}

func (r *Repository) RemoveBlockedSender(ctx context.Context, id uint64) error {
	result := r.db.WithContext(ctx).Delete(&model.BlockedSender{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to unblock sender: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
