package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"ticketdesk-go/internal/model"
)

// ParseRaw parses raw RFC822 bytes into an InboundEmail: headers, the
// preferred plain-text body and the HTML body as fallback. Attachment
// parts are skipped here; the attachment store walks them separately.
func ParseRaw(providerID string, raw []byte) (*model.InboundEmail, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	email := &model.InboundEmail{
		ProviderID: providerID,
		From:       mr.Header.Get("From"),
		ReplyTo:    mr.Header.Get("Reply-To"),
		Headers:    map[string]string{},
	}
	if subject, err := mr.Header.Subject(); err == nil {
		email.Subject = subject
	} else {
		email.Subject = mr.Header.Get("Subject")
	}
	if date, err := mr.Header.Date(); err == nil {
		email.Date = date
	} else {
		email.Date = time.Now()
	}
	for _, name := range []string{"Message-Id", "In-Reply-To", "References", "To", "Cc"} {
		if v := mr.Header.Get(name); v != "" {
			email.Headers[name] = v
		}
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A broken part should not lose the whole message.
			break
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := header.ContentType()
		if err != nil {
			continue
		}

		content, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && email.Body == "":
			email.Body = string(content)
		case strings.HasPrefix(contentType, "text/html") && email.HTMLBody == "":
			email.HTMLBody = string(content)
		}
	}

	return email, nil
}
