package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"ticketdesk-go/internal/config"
	"ticketdesk-go/internal/model"
)

// GmailSource implements Source using the Gmail API, for deployments
// where IMAP is disabled on the account.
type GmailSource struct {
	service   *gmail.Service
	cfg       *config.MailboxConfig
	userEmail string
}

// NewGmailSource creates a Gmail API mailbox source.
func NewGmailSource(cfg *config.MailboxConfig) (*GmailSource, error) {
	ctx := context.Background()

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}
	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	tokenSource := oauth2Config.TokenSource(ctx, token)

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &GmailSource{
		service:   service,
		cfg:       cfg,
		userEmail: cfg.UserEmail,
	}, nil
}

// Connect verifies the API credentials by fetching the user profile.
func (s *GmailSource) Connect(ctx context.Context) error {
	_, err := s.service.Users.GetProfile(s.userEmail).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to verify Gmail API connection: %w", err)
	}
	return nil
}

// FetchRecent lists messages received after the given time and downloads
// their raw RFC822 bytes. The Gmail message id is the provider id.
func (s *GmailSource) FetchRecent(ctx context.Context, since time.Time) ([]model.RawMessage, error) {
	query := fmt.Sprintf("after:%d", since.Unix())

	response, err := s.service.Users.Messages.List(s.userEmail).Q(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	var fetched []model.RawMessage
	for _, ref := range response.Messages {
		msg, err := s.service.Users.Messages.Get(s.userEmail, ref.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			logrus.Warnf("Failed to get message %s: %v", ref.Id, err)
			continue
		}

		raw, err := decodeRawMessage(msg.Raw)
		if err != nil {
			logrus.Warnf("Failed to decode message %s: %v", ref.Id, err)
			continue
		}

		fetched = append(fetched, model.RawMessage{
			ProviderID: msg.Id,
			Raw:        raw,
			ReceivedAt: time.UnixMilli(msg.InternalDate),
		})
	}
	return fetched, nil
}

// Close closes the Gmail source (no-op for the API client).
func (s *GmailSource) Close() error {
	return nil
}

// decodeRawMessage decodes the base64url message body. The API returns it
// unpadded; padded form is accepted as well.
func decodeRawMessage(raw string) ([]byte, error) {
	if decoded, err := base64.RawURLEncoding.DecodeString(raw); err == nil {
		return decoded, nil
	}
	return base64.URLEncoding.DecodeString(raw)
}
