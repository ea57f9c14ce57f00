// Package pipeline orchestrates ingestion of inbound messages: dedup,
// blocklist, thread resolution, ticket and message creation, auto-tagging,
// assignment and acknowledgement dispatch. Every message reaches a
// terminal ingest-ledger state; no failure escapes to the caller's loop.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ticketdesk-go/internal/assign"
	"ticketdesk-go/internal/attach"
	"ticketdesk-go/internal/mailbox"
	"ticketdesk-go/internal/mailer"
	"ticketdesk-go/internal/metrics"
	"ticketdesk-go/internal/model"
	"ticketdesk-go/internal/normalize"
	"ticketdesk-go/internal/resolve"
	"ticketdesk-go/internal/tagger"
)

// errNoAdviser aborts the new-ticket transaction when the active adviser
// set is empty, so no unassignable ticket is left behind.
var errNoAdviser = errors.New("no active advisers available")

// Store is the persistence surface the pipeline needs. Transact runs the
// callback against a transaction-scoped Store; mutations inside it commit
// or roll back together.
type Store interface {
	resolve.TicketStore
	assign.Store

	// CreateIngest inserts a ledger row. It returns an error matching
	// model.ErrDuplicateIngest when the provider message id exists; that
	// unique constraint is the authoritative dedup signal.
	CreateIngest(ctx context.Context, record *model.IngestRecord) error
	UpdateIngest(ctx context.Context, record *model.IngestRecord) error
	IngestExists(ctx context.Context, providerMessageID string) (bool, error)

	IsBlocked(ctx context.Context, email string) (bool, error)

	// OpenTicketByChannel finds a non-closed ticket keyed on the channel
	// correlation pair, for non-email channels.
	OpenTicketByChannel(ctx context.Context, channel model.ChannelType, identifier string) (*model.Ticket, error)
	CreateTicket(ctx context.Context, ticket *model.Ticket) error
	UpdateTicket(ctx context.Context, ticket *model.Ticket) error
	CreateMessage(ctx context.Context, message *model.TicketMessage) error

	LanguageIDByName(ctx context.Context, name string) (*uint, error)
	VOCIDByName(ctx context.Context, name string) (*uint, error)
	PriorityIDByName(ctx context.Context, name string) (*uint, error)

	Transact(ctx context.Context, fn func(Store) error) error
}

// ChannelMessage is an inbound event from a non-email channel, delivered
// already parsed by a webhook.
type ChannelMessage struct {
	Channel           model.ChannelType
	ProviderMessageID string
	SenderID          string
	SenderName        string
	Text              string
	ReceivedAt        time.Time
}

// Pipeline ingests inbound messages into tickets.
type Pipeline struct {
	store       Store
	norm        *normalize.Normalizer
	tagger      *tagger.Tagger
	sender      mailer.Sender
	attachments attach.Store
	metrics     *metrics.Metrics
	supportAddr string
}

// New creates a Pipeline.
func New(store Store, norm *normalize.Normalizer, tg *tagger.Tagger, sender mailer.Sender, attachments attach.Store, m *metrics.Metrics, supportAddr string) *Pipeline {
	return &Pipeline{
		store:       store,
		norm:        norm,
		tagger:      tg,
		sender:      sender,
		attachments: attachments,
		metrics:     m,
		supportAddr: supportAddr,
	}
}

// ProcessEmail runs the per-message ingestion algorithm for one raw
// fetched message. It always returns nil for handled messages, including
// duplicates and messages that ended in a terminal error state; a non-nil
// error means the ledger itself could not be written.
func (p *Pipeline) ProcessEmail(ctx context.Context, raw model.RawMessage) error {
	// Dedup pre-check. The unique constraint on the ledger insert below
	// is the backstop when two pollers race past this.
	exists, err := p.store.IngestExists(ctx, raw.ProviderID)
	if err != nil {
		return fmt.Errorf("failed to check ingest ledger: %w", err)
	}
	if exists {
		logrus.Debugf("Message %s already processed, skipping", raw.ProviderID)
		p.metrics.IngestDuplicates.Inc()
		return nil
	}

	email, parseErr := mailbox.ParseRaw(raw.ProviderID, raw.Raw)

	var fromEmail, rawSubject string
	if parseErr == nil {
		fromEmail = p.norm.ResolveSender(email.From, email.ReplyTo)
		rawSubject = strings.TrimSpace(email.Subject)
	}

	record := &model.IngestRecord{
		ProviderMessageID: raw.ProviderID,
		FromEmail:         fromEmail,
		Subject:           rawSubject,
		ReceivedAt:        raw.ReceivedAt,
		Status:            model.IngestQueued,
	}
	if err := p.store.CreateIngest(ctx, record); err != nil {
		if errors.Is(err, model.ErrDuplicateIngest) {
			logrus.Debugf("Message %s lost the ledger race, already handled", raw.ProviderID)
			p.metrics.IngestDuplicates.Inc()
			return nil
		}
		return fmt.Errorf("failed to create ingest record: %w", err)
	}

	if parseErr != nil {
		return p.markError(ctx, record, fmt.Sprintf("failed to parse message: %v", parseErr))
	}
	if fromEmail == "" || rawSubject == "" {
		return p.markError(ctx, record, "missing sender address or subject after normalization")
	}

	body := normalize.CleanText(email.Body)
	if body == "" && email.HTMLBody != "" {
		body = normalize.CleanText(normalize.HTMLToText(email.HTMLBody))
	}

	blocked, err := p.store.IsBlocked(ctx, fromEmail)
	if err != nil {
		return p.markError(ctx, record, fmt.Sprintf("failed to check blocklist: %v", err))
	}
	if blocked {
		logrus.Infof("Sender %s is blocked, skipping message %s", fromEmail, raw.ProviderID)
		return p.markTerminal(ctx, record, model.IngestSkipped)
	}

	attachmentsJSON := p.saveAttachments(raw)

	sentAt := email.Date
	if sentAt.IsZero() {
		sentAt = raw.ReceivedAt
	}

	var createdTicket *model.Ticket
	err = p.store.Transact(ctx, func(s Store) error {
		resolver := resolve.New(p.norm, s)
		res, err := resolver.Resolve(ctx, rawSubject, fromEmail, body)
		if err != nil {
			return err
		}

		if res.Ticket != nil {
			return p.appendInbound(ctx, s, res, fromEmail, rawSubject, body, attachmentsJSON, email.Headers["Message-Id"], sentAt)
		}

		ticket, err := p.createTicket(ctx, s, fromEmail, customerNameFrom(fromEmail), rawSubject, body, model.ChannelEmail, nil)
		if err != nil {
			return err
		}

		message := &model.TicketMessage{
			TicketID:        ticket.ID,
			Direction:       model.DirectionInbound,
			FromEmail:       fromEmail,
			ToEmail:         p.supportAddr,
			Subject:         rawSubject,
			Body:            body,
			AttachmentsJSON: attachmentsJSON,
			SentAt:          sentAt,
		}
		if id := email.Headers["Message-Id"]; id != "" {
			message.ProviderMsgID = &id
		}
		if err := s.CreateMessage(ctx, message); err != nil {
			return fmt.Errorf("failed to create inbound message: %w", err)
		}

		createdTicket = ticket
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoAdviser) {
			return p.markError(ctx, record, errNoAdviser.Error())
		}
		return p.markError(ctx, record, err.Error())
	}

	if createdTicket != nil {
		p.sendAcknowledgement(ctx, createdTicket)
		p.metrics.TicketsCreated.Inc()
		logrus.Infof("Created ticket %d for %s from message %s", createdTicket.ID, fromEmail, raw.ProviderID)
	} else {
		p.metrics.RepliesAppended.Inc()
	}

	return p.markTerminal(ctx, record, model.IngestProcessed)
}

// ProcessChannelMessage ingests one event from a non-email channel.
// Resolution keys on (channel, channel identifier) instead of subject and
// address. The dedup ledger, assignment atomicity and terminal ledger
// states are shared with the email path.
func (p *Pipeline) ProcessChannelMessage(ctx context.Context, msg ChannelMessage) error {
	if msg.ProviderMessageID == "" || msg.SenderID == "" {
		return fmt.Errorf("channel message missing provider id or sender id")
	}

	exists, err := p.store.IngestExists(ctx, msg.ProviderMessageID)
	if err != nil {
		return fmt.Errorf("failed to check ingest ledger: %w", err)
	}
	if exists {
		p.metrics.IngestDuplicates.Inc()
		return nil
	}

	customerEmail := fmt.Sprintf("%s_%s@%s.local", msg.Channel, msg.SenderID, msg.Channel)
	customerName := msg.SenderName
	if customerName == "" {
		customerName = fmt.Sprintf("%s user %s", msg.Channel, msg.SenderID)
	}
	subject := fmt.Sprintf("New %s message from %s", msg.Channel, customerName)

	receivedAt := msg.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	record := &model.IngestRecord{
		ProviderMessageID: msg.ProviderMessageID,
		FromEmail:         customerEmail,
		Subject:           subject,
		ReceivedAt:        receivedAt,
		Status:            model.IngestQueued,
	}
	if err := p.store.CreateIngest(ctx, record); err != nil {
		if errors.Is(err, model.ErrDuplicateIngest) {
			p.metrics.IngestDuplicates.Inc()
			return nil
		}
		return fmt.Errorf("failed to create ingest record: %w", err)
	}

	body := normalize.CleanText(msg.Text)
	if body == "" {
		return p.markError(ctx, record, "empty message text")
	}

	err = p.store.Transact(ctx, func(s Store) error {
		ticket, err := s.OpenTicketByChannel(ctx, msg.Channel, msg.SenderID)
		if err != nil {
			return fmt.Errorf("failed to look up channel ticket: %w", err)
		}

		if ticket == nil {
			identifier := msg.SenderID
			ticket, err = p.createTicket(ctx, s, customerEmail, customerName, subject, body, msg.Channel, &identifier)
			if err != nil {
				return err
			}
			p.metrics.TicketsCreated.Inc()
		} else {
			ticket.UpdatedAt = time.Now()
			if err := s.UpdateTicket(ctx, ticket); err != nil {
				return fmt.Errorf("failed to bump ticket: %w", err)
			}
			p.metrics.RepliesAppended.Inc()
		}

		message := &model.TicketMessage{
			TicketID:  ticket.ID,
			Direction: model.DirectionInbound,
			FromEmail: customerEmail,
			ToEmail:   p.supportAddr,
			Subject:   ticket.Subject,
			Body:      body,
			SentAt:    receivedAt,
		}
		providerID := msg.ProviderMessageID
		message.ProviderMsgID = &providerID
		if err := s.CreateMessage(ctx, message); err != nil {
			return fmt.Errorf("failed to create inbound message: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoAdviser) {
			return p.markError(ctx, record, errNoAdviser.Error())
		}
		return p.markError(ctx, record, err.Error())
	}

	return p.markTerminal(ctx, record, model.IngestProcessed)
}

// appendInbound adds a reply message to a resolved ticket, reopening it
// when signaled, and bumps its updated timestamp. No acknowledgement is
// sent on reply-append.
func (p *Pipeline) appendInbound(ctx context.Context, s Store, res resolve.Resolution, fromEmail, subject, body string, attachmentsJSON *string, providerMsgID string, sentAt time.Time) error {
	ticket := res.Ticket

	message := &model.TicketMessage{
		TicketID:        ticket.ID,
		Direction:       model.DirectionInbound,
		FromEmail:       fromEmail,
		ToEmail:         p.supportAddr,
		Subject:         subject,
		Body:            body,
		AttachmentsJSON: attachmentsJSON,
		SentAt:          sentAt,
	}
	if providerMsgID != "" {
		message.ProviderMsgID = &providerMsgID
	}
	if err := s.CreateMessage(ctx, message); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	if res.Reopen {
		ticket.Status = model.StatusOpen
		logrus.Infof("Reopened closed ticket %d", ticket.ID)
	}
	ticket.UpdatedAt = time.Now()
	if err := s.UpdateTicket(ctx, ticket); err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}

	logrus.Infof("Appended inbound message to ticket %d", ticket.ID)
	return nil
}

// createTicket classifies the message, picks the next adviser and inserts
// the ticket row. When no adviser is active it fails with errNoAdviser
// and creates nothing.
func (p *Pipeline) createTicket(ctx context.Context, s Store, customerEmail, customerName, subject, body string, channel model.ChannelType, channelIdentifier *string) (*model.Ticket, error) {
	tags := p.tagger.Classify(subject, body)

	languageID, err := s.LanguageIDByName(ctx, tags.Language)
	if err != nil {
		return nil, fmt.Errorf("failed to look up language category: %w", err)
	}
	vocID, err := s.VOCIDByName(ctx, tags.VOC)
	if err != nil {
		return nil, fmt.Errorf("failed to look up voc category: %w", err)
	}
	priorityID, err := s.PriorityIDByName(ctx, tags.Priority)
	if err != nil {
		return nil, fmt.Errorf("failed to look up priority category: %w", err)
	}

	adviserID, ok, err := assign.NextAdviser(ctx, s)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNoAdviser
	}

	ticket := &model.Ticket{
		CustomerEmail:     customerEmail,
		CustomerName:      customerName,
		Subject:           subject,
		Status:            model.StatusOpen,
		AssignedTo:        &adviserID,
		LanguageID:        languageID,
		VOCID:             vocID,
		PriorityID:        priorityID,
		Channel:           channel,
		ChannelIdentifier: channelIdentifier,
	}
	if err := s.CreateTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}
	return ticket, nil
}

// sendAcknowledgement dispatches the auto-ack for a new ticket and records
// the attempt as an outbound message. A send failure is logged, never
// fatal to the ingestion.
func (p *Pipeline) sendAcknowledgement(ctx context.Context, ticket *model.Ticket) {
	subject := fmt.Sprintf("%s We've received your request", normalize.TicketRef(ticket.ID))
	body := fmt.Sprintf(`Thank you for contacting us. We have received your request and assigned it ticket number TKT-%d.

Our team will review your inquiry and respond shortly.

Best regards,
Support Team`, ticket.ID)

	messageID, err := p.sender.Send(ctx, ticket.CustomerEmail, subject, body, "")
	if err != nil {
		logrus.Errorf("Failed to send acknowledgement for ticket %d: %v", ticket.ID, err)
		p.metrics.AckFailures.Inc()
	}

	ack := &model.TicketMessage{
		TicketID:  ticket.ID,
		Direction: model.DirectionOutbound,
		FromEmail: p.supportAddr,
		ToEmail:   ticket.CustomerEmail,
		Subject:   subject,
		Body:      body,
		SentAt:    time.Now(),
	}
	if messageID != "" {
		ack.ProviderMsgID = &messageID
	}
	if err := p.store.CreateMessage(ctx, ack); err != nil {
		logrus.Errorf("Failed to record acknowledgement for ticket %d: %v", ticket.ID, err)
	}
}

func (p *Pipeline) saveAttachments(raw model.RawMessage) *string {
	if p.attachments == nil {
		return nil
	}
	metas, err := p.attachments.ExtractAndSave(raw.Raw, raw.ProviderID)
	if err != nil {
		logrus.Warnf("Failed to extract attachments from message %s: %v", raw.ProviderID, err)
		return nil
	}
	if len(metas) == 0 {
		return nil
	}
	encoded, err := json.Marshal(metas)
	if err != nil {
		logrus.Warnf("Failed to encode attachment metadata for message %s: %v", raw.ProviderID, err)
		return nil
	}
	s := string(encoded)
	return &s
}

func (p *Pipeline) markTerminal(ctx context.Context, record *model.IngestRecord, status model.IngestStatus) error {
	now := time.Now()
	record.Status = status
	record.ProcessedAt = &now
	if err := p.store.UpdateIngest(ctx, record); err != nil {
		return fmt.Errorf("failed to update ingest record: %w", err)
	}
	if status == model.IngestSkipped {
		p.metrics.IngestSkipped.Inc()
	}
	return nil
}

func (p *Pipeline) markError(ctx context.Context, record *model.IngestRecord, detail string) error {
	logrus.Errorf("Message %s failed: %s", record.ProviderMessageID, detail)
	p.metrics.IngestErrors.Inc()

	now := time.Now()
	record.Status = model.IngestError
	record.ProcessedAt = &now
	record.ErrorText = &detail
	if err := p.store.UpdateIngest(ctx, record); err != nil {
		return fmt.Errorf("failed to mark ingest record as error: %w", err)
	}
	return nil
}

func customerNameFrom(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
