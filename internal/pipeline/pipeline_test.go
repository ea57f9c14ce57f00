package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketdesk-go/internal/metrics"
	"ticketdesk-go/internal/model"
	"ticketdesk-go/internal/normalize"
	"ticketdesk-go/internal/tagger"
)

// fakeStore is an in-memory Store.
type fakeStore struct {
	ingests      map[string]*model.IngestRecord
	blocked      map[string]bool
	tickets      []*model.Ticket
	messages     []*model.TicketMessage
	advisers     []model.User
	cursor       model.AssignmentCursor
	categories   map[string]uint
	nextTicketID uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		ingests: map[string]*model.IngestRecord{},
		blocked: map[string]bool{},
		categories: map[string]uint{
			"English": 1, "Spanish": 2,
			"General Inquiry": 1, "Refund Request": 2,
			"Low": 1, "High": 2,
		},
		advisers: []model.User{
			{ID: 10, Role: model.RoleAdviser, IsActive: true},
			{ID: 11, Role: model.RoleAdviser, IsActive: true},
		},
	}
}

func (f *fakeStore) CreateIngest(ctx context.Context, record *model.IngestRecord) error {
	if _, ok := f.ingests[record.ProviderMessageID]; ok {
		return fmt.Errorf("insert ingest: %w", model.ErrDuplicateIngest)
	}
	record.ID = uint64(len(f.ingests) + 1)
	f.ingests[record.ProviderMessageID] = record
	return nil
}

func (f *fakeStore) UpdateIngest(ctx context.Context, record *model.IngestRecord) error {
	f.ingests[record.ProviderMessageID] = record
	return nil
}

func (f *fakeStore) IngestExists(ctx context.Context, providerMessageID string) (bool, error) {
	_, ok := f.ingests[providerMessageID]
	return ok, nil
}

func (f *fakeStore) IsBlocked(ctx context.Context, email string) (bool, error) {
	return f.blocked[email], nil
}

func (f *fakeStore) TicketByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	for _, t := range f.tickets {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) TicketBySubjectAndCustomer(ctx context.Context, subject, customerEmail string) (*model.Ticket, error) {
	for _, t := range f.tickets {
		if t.Subject == subject && t.CustomerEmail == customerEmail {
			return t, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) LatestTicketForCustomer(ctx context.Context, customerEmail string) (*model.Ticket, error) {
	var latest *model.Ticket
	for _, t := range f.tickets {
		if t.CustomerEmail != customerEmail {
			continue
		}
		if latest == nil || t.UpdatedAt.After(latest.UpdatedAt) {
			latest = t
		}
	}
	return latest, nil
}

func (f *fakeStore) OpenTicketByChannel(ctx context.Context, channel model.ChannelType, identifier string) (*model.Ticket, error) {
	for _, t := range f.tickets {
		if t.Channel == channel && t.ChannelIdentifier != nil && *t.ChannelIdentifier == identifier && t.Status != model.StatusClosed {
			return t, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateTicket(ctx context.Context, ticket *model.Ticket) error {
	f.nextTicketID++
	ticket.ID = f.nextTicketID
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	f.tickets = append(f.tickets, ticket)
	return nil
}

func (f *fakeStore) UpdateTicket(ctx context.Context, ticket *model.Ticket) error {
	return nil
}

func (f *fakeStore) CreateMessage(ctx context.Context, message *model.TicketMessage) error {
	message.ID = uint64(len(f.messages) + 1)
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeStore) LanguageIDByName(ctx context.Context, name string) (*uint, error) {
	return f.categoryID(name), nil
}

func (f *fakeStore) VOCIDByName(ctx context.Context, name string) (*uint, error) {
	return f.categoryID(name), nil
}

func (f *fakeStore) PriorityIDByName(ctx context.Context, name string) (*uint, error) {
	return f.categoryID(name), nil
}

func (f *fakeStore) categoryID(name string) *uint {
	if id, ok := f.categories[name]; ok {
		return &id
	}
	return nil
}

func (f *fakeStore) ActiveAdvisers(ctx context.Context) ([]model.User, error) {
	return f.advisers, nil
}

func (f *fakeStore) Cursor(ctx context.Context) (*model.AssignmentCursor, error) {
	if f.cursor.ID == 0 {
		f.cursor = model.AssignmentCursor{ID: 1}
	}
	return &f.cursor, nil
}

func (f *fakeStore) SaveCursor(ctx context.Context, cursor *model.AssignmentCursor) error {
	f.cursor = *cursor
	return nil
}

func (f *fakeStore) Transact(ctx context.Context, fn func(Store) error) error {
	return fn(f)
}

func (f *fakeStore) inboundMessages() []*model.TicketMessage {
	var out []*model.TicketMessage
	for _, m := range f.messages {
		if m.Direction == model.DirectionInbound {
			out = append(out, m)
		}
	}
	return out
}

// fakeSender records send attempts.
type fakeSender struct {
	sent []sentMail
	fail bool
}

type sentMail struct {
	to, subject, body string
}

func (f *fakeSender) Send(ctx context.Context, to, subject, body, inReplyTo string) (string, error) {
	if f.fail {
		return "", fmt.Errorf("smtp unavailable")
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return fmt.Sprintf("msgid-%d", len(f.sent)), nil
}

func newPipeline(store *fakeStore, sender *fakeSender) *Pipeline {
	return New(
		store,
		normalize.New(nil, nil),
		tagger.New(nil, nil, nil),
		sender,
		nil,
		metrics.NewMetricsWith(prometheus.NewRegistry()),
		"support@ticketdesk.local",
	)
}

func rawEmail(from, subject, body string) []byte {
	msg := fmt.Sprintf(`From: %s
To: support@ticketdesk.local
Subject: %s
Message-Id: <in-msg@example.com>
Content-Type: text/plain; charset=utf-8

%s
`, from, subject, body)
	return []byte(strings.ReplaceAll(msg, "\n", "\r\n"))
}

func rawMessage(providerID string, raw []byte) model.RawMessage {
	return model.RawMessage{ProviderID: providerID, Raw: raw, ReceivedAt: time.Now()}
}

func TestProcessEmailCreatesTicket(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	p := newPipeline(store, sender)

	raw := rawMessage("m1", rawEmail("Jane <jane@example.com>", "Order issue", "I need a refund urgently"))
	require.NoError(t, p.ProcessEmail(context.Background(), raw))

	require.Len(t, store.tickets, 1)
	ticket := store.tickets[0]
	assert.Equal(t, "jane@example.com", ticket.CustomerEmail)
	assert.Equal(t, "Order issue", ticket.Subject)
	assert.Equal(t, model.StatusOpen, ticket.Status)
	require.NotNil(t, ticket.AssignedTo)
	assert.Equal(t, uint64(10), *ticket.AssignedTo)
	require.NotNil(t, ticket.VOCID)
	assert.Equal(t, uint(2), *ticket.VOCID) // Refund Request
	require.NotNil(t, ticket.PriorityID)
	assert.Equal(t, uint(2), *ticket.PriorityID) // High

	// Inbound message plus recorded acknowledgement.
	require.Len(t, store.messages, 2)
	assert.Equal(t, model.DirectionInbound, store.messages[0].Direction)
	assert.Equal(t, model.DirectionOutbound, store.messages[1].Direction)
	assert.Contains(t, store.messages[1].Subject, "[TKT-1]")

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "jane@example.com", sender.sent[0].to)
	assert.Contains(t, sender.sent[0].subject, "[TKT-1]")

	assert.Equal(t, model.IngestProcessed, store.ingests["m1"].Status)
	require.NotNil(t, store.ingests["m1"].ProcessedAt)
}

func TestProcessEmailIdempotent(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	p := newPipeline(store, sender)

	raw := rawMessage("m1", rawEmail("jane@example.com", "Order issue", "hello"))
	require.NoError(t, p.ProcessEmail(context.Background(), raw))
	require.NoError(t, p.ProcessEmail(context.Background(), raw))

	assert.Len(t, store.tickets, 1)
	assert.Len(t, store.inboundMessages(), 1)
	assert.Len(t, sender.sent, 1)
}

// raceStore simulates a concurrent poller winning the ledger race between
// the existence pre-check and the insert.
type raceStore struct {
	*fakeStore
}

func (r *raceStore) IngestExists(ctx context.Context, providerMessageID string) (bool, error) {
	return false, nil
}

func (r *raceStore) Transact(ctx context.Context, fn func(Store) error) error {
	return fn(r)
}

func TestProcessEmailDuplicateInsertIsNoOp(t *testing.T) {
	inner := newFakeStore()
	inner.ingests["m1"] = &model.IngestRecord{ProviderMessageID: "m1", Status: model.IngestProcessed}
	store := &raceStore{fakeStore: inner}
	sender := &fakeSender{}
	p := New(store, normalize.New(nil, nil), tagger.New(nil, nil, nil), sender, nil,
		metrics.NewMetricsWith(prometheus.NewRegistry()), "support@ticketdesk.local")

	raw := rawMessage("m1", rawEmail("jane@example.com", "Order issue", "hello"))
	require.NoError(t, p.ProcessEmail(context.Background(), raw))

	// The unique-violation insert is treated as already handled.
	assert.Empty(t, inner.tickets)
	assert.Equal(t, model.IngestProcessed, inner.ingests["m1"].Status)
}

func TestProcessEmailBlockedSender(t *testing.T) {
	store := newFakeStore()
	store.blocked["spam@example.com"] = true
	sender := &fakeSender{}
	p := newPipeline(store, sender)

	raw := rawMessage("m1", rawEmail("spam@example.com", "Buy now", "spam"))
	require.NoError(t, p.ProcessEmail(context.Background(), raw))

	assert.Equal(t, model.IngestSkipped, store.ingests["m1"].Status)
	assert.Empty(t, store.tickets)
	assert.Empty(t, store.messages)
	assert.Empty(t, sender.sent)
}

func TestProcessEmailReplyAppends(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	p := newPipeline(store, sender)

	first := rawMessage("m1", rawEmail("a@x.com", "Order issue", "it broke"))
	require.NoError(t, p.ProcessEmail(context.Background(), first))
	require.Len(t, store.tickets, 1)

	reply := rawMessage("m2", rawEmail("a@x.com", "RE: Order issue", "still broken"))
	require.NoError(t, p.ProcessEmail(context.Background(), reply))

	// No second ticket; two inbound messages on the first one.
	assert.Len(t, store.tickets, 1)
	inbound := store.inboundMessages()
	require.Len(t, inbound, 2)
	assert.Equal(t, store.tickets[0].ID, inbound[1].TicketID)

	// Only the original ticket creation sent an acknowledgement.
	assert.Len(t, sender.sent, 1)
}

func TestProcessEmailReopensClosedTicket(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	p := newPipeline(store, sender)

	first := rawMessage("m1", rawEmail("a@x.com", "Order issue", "it broke"))
	require.NoError(t, p.ProcessEmail(context.Background(), first))
	store.tickets[0].Status = model.StatusClosed

	reply := rawMessage("m2", rawEmail("a@x.com", "RE: Order issue", "me again"))
	require.NoError(t, p.ProcessEmail(context.Background(), reply))

	assert.Equal(t, model.StatusOpen, store.tickets[0].Status)
}

func TestProcessEmailExplicitReference(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	p := newPipeline(store, sender)

	first := rawMessage("m1", rawEmail("a@x.com", "Order issue", "it broke"))
	require.NoError(t, p.ProcessEmail(context.Background(), first))

	// Different address and subject, but the token targets ticket 1.
	ref := rawMessage("m2", rawEmail("someone.else@y.com", "totally different [TKT-1]", "extra info"))
	require.NoError(t, p.ProcessEmail(context.Background(), ref))

	assert.Len(t, store.tickets, 1)
	inbound := store.inboundMessages()
	require.Len(t, inbound, 2)
	assert.Equal(t, uint64(1), inbound[1].TicketID)
}

func TestProcessEmailNoAdvisers(t *testing.T) {
	store := newFakeStore()
	store.advisers = nil
	sender := &fakeSender{}
	p := newPipeline(store, sender)

	raw := rawMessage("m1", rawEmail("a@x.com", "Order issue", "help"))
	require.NoError(t, p.ProcessEmail(context.Background(), raw))

	record := store.ingests["m1"]
	assert.Equal(t, model.IngestError, record.Status)
	require.NotNil(t, record.ErrorText)
	assert.Contains(t, *record.ErrorText, "no active advisers")
	assert.Empty(t, store.tickets)
	assert.Empty(t, sender.sent)
}

func TestProcessEmailAckFailureStillProcessed(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{fail: true}
	p := newPipeline(store, sender)

	raw := rawMessage("m1", rawEmail("a@x.com", "Order issue", "help"))
	require.NoError(t, p.ProcessEmail(context.Background(), raw))

	assert.Equal(t, model.IngestProcessed, store.ingests["m1"].Status)
	require.Len(t, store.tickets, 1)

	// The attempt is recorded as an outbound message without provider id.
	require.Len(t, store.messages, 2)
	assert.Equal(t, model.DirectionOutbound, store.messages[1].Direction)
	assert.Nil(t, store.messages[1].ProviderMsgID)
}

func TestProcessEmailEmptySubject(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	p := newPipeline(store, sender)

	raw := rawMessage("m1", rawEmail("a@x.com", "", "body"))
	require.NoError(t, p.ProcessEmail(context.Background(), raw))

	record := store.ingests["m1"]
	assert.Equal(t, model.IngestError, record.Status)
	assert.Empty(t, store.tickets)
}

func TestProcessEmailUnparseable(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	p := newPipeline(store, sender)

	raw := rawMessage("m1", []byte("this is not an email"))
	require.NoError(t, p.ProcessEmail(context.Background(), raw))

	record := store.ingests["m1"]
	require.NotNil(t, record)
	assert.Equal(t, model.IngestError, record.Status)
	assert.Empty(t, store.tickets)
}

func TestProcessChannelMessage(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	p := newPipeline(store, sender)
	ctx := context.Background()

	first := ChannelMessage{
		Channel:           model.ChannelInstagram,
		ProviderMessageID: "mid-1",
		SenderID:          "ig-42",
		SenderName:        "jane.doe",
		Text:              "hi, my order is late",
	}
	require.NoError(t, p.ProcessChannelMessage(ctx, first))

	require.Len(t, store.tickets, 1)
	ticket := store.tickets[0]
	assert.Equal(t, model.ChannelInstagram, ticket.Channel)
	require.NotNil(t, ticket.ChannelIdentifier)
	assert.Equal(t, "ig-42", *ticket.ChannelIdentifier)
	assert.Equal(t, "jane.doe", ticket.CustomerName)
	require.NotNil(t, ticket.AssignedTo)

	// Second message from the same sender appends instead of creating.
	second := ChannelMessage{
		Channel:           model.ChannelInstagram,
		ProviderMessageID: "mid-2",
		SenderID:          "ig-42",
		Text:              "any update?",
	}
	require.NoError(t, p.ProcessChannelMessage(ctx, second))

	assert.Len(t, store.tickets, 1)
	assert.Len(t, store.inboundMessages(), 2)

	// No acknowledgement mail on the Instagram channel.
	assert.Empty(t, sender.sent)
}

func TestProcessChannelMessageDedup(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	p := newPipeline(store, sender)
	ctx := context.Background()

	msg := ChannelMessage{
		Channel:           model.ChannelInstagram,
		ProviderMessageID: "mid-1",
		SenderID:          "ig-42",
		Text:              "hello",
	}
	require.NoError(t, p.ProcessChannelMessage(ctx, msg))
	require.NoError(t, p.ProcessChannelMessage(ctx, msg))

	assert.Len(t, store.tickets, 1)
	assert.Len(t, store.inboundMessages(), 1)
}

func TestProcessEmailRoundRobinAcrossTickets(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	p := newPipeline(store, sender)
	ctx := context.Background()

	for i, from := range []string{"a@x.com", "b@x.com"} {
		raw := rawMessage(fmt.Sprintf("m%d", i+1), rawEmail(from, fmt.Sprintf("Topic %d", i+1), "body"))
		require.NoError(t, p.ProcessEmail(ctx, raw))
	}

	require.Len(t, store.tickets, 2)
	assert.Equal(t, uint64(10), *store.tickets[0].AssignedTo)
	assert.Equal(t, uint64(11), *store.tickets[1].AssignedTo)
}
