package mailbox

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"ticketdesk-go/internal/config"
	"ticketdesk-go/internal/model"
)

// IMAPSource implements Source over an IMAP mailbox. The connection is
// re-established per poll cycle when it has been closed, with a bounded
// dial timeout so a dead server never hangs the worker.
type IMAPSource struct {
	cfg    *config.MailboxConfig
	client *client.Client
}

// NewIMAPSource creates an IMAP mailbox source. No connection is made
// until Connect or the first FetchRecent.
func NewIMAPSource(cfg *config.MailboxConfig) *IMAPSource {
	return &IMAPSource{cfg: cfg}
}

// Connect dials and authenticates against the IMAP server.
func (s *IMAPSource) Connect(ctx context.Context) error {
	if s.client != nil {
		return nil
	}

	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	addr := fmt.Sprintf("%s:%d", s.cfg.IMAPHost, s.cfg.IMAPPort)

	c, err := client.DialWithDialerTLS(dialer, addr, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	c.Timeout = s.cfg.Timeout

	if err := c.Login(s.cfg.IMAPUser, s.cfg.IMAPPassword); err != nil {
		c.Logout()
		return fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	s.client = c
	logrus.Infof("Connected to IMAP server %s", addr)
	return nil
}

// FetchRecent searches INBOX for messages received since the given time
// and fetches their full raw bodies. Provider ids combine the mailbox
// UIDVALIDITY with the message UID so they stay unique across mailbox
// resets.
func (s *IMAPSource) FetchRecent(ctx context.Context, since time.Time) ([]model.RawMessage, error) {
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}

	mbox, err := s.client.Select("INBOX", true)
	if err != nil {
		s.drop()
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		s.drop()
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqset, items, messages)
	}()

	var fetched []model.RawMessage
	for msg := range messages {
		raw, err := s.rawBody(msg, section)
		if err != nil {
			logrus.Warnf("Failed to read IMAP message %d: %v", msg.Uid, err)
			continue
		}

		receivedAt := time.Now()
		if msg.Envelope != nil && !msg.Envelope.Date.IsZero() {
			receivedAt = msg.Envelope.Date
		}

		fetched = append(fetched, model.RawMessage{
			ProviderID: fmt.Sprintf("%d-%d", mbox.UidValidity, msg.Uid),
			Raw:        raw,
			ReceivedAt: receivedAt,
		})
	}

	if err := <-done; err != nil {
		s.drop()
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return fetched, nil
}

func (s *IMAPSource) rawBody(msg *imap.Message, section *imap.BodySectionName) ([]byte, error) {
	r := msg.GetBody(section)
	if r == nil {
		return nil, fmt.Errorf("no body section in fetch response")
	}
	return io.ReadAll(r)
}

// drop discards the connection so the next cycle reconnects.
func (s *IMAPSource) drop() {
	if s.client != nil {
		s.client.Logout()
		s.client = nil
	}
}

// Close logs out from the IMAP server.
func (s *IMAPSource) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Logout()
	s.client = nil
	return err
}
