package mailbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParseRawPlainText(t *testing.T) {
	raw := crlf(`From: Jane Doe <jane@example.com>
To: support@ticketdesk.local
Subject: Order issue
Date: Mon, 02 Jan 2006 15:04:05 -0700
Message-Id: <abc@example.com>
Content-Type: text/plain; charset=utf-8

My order never arrived.
`)

	email, err := ParseRaw("prov-1", raw)
	require.NoError(t, err)

	assert.Equal(t, "prov-1", email.ProviderID)
	assert.Contains(t, email.From, "jane@example.com")
	assert.Equal(t, "Order issue", email.Subject)
	assert.Contains(t, email.Body, "My order never arrived.")
	assert.Equal(t, "", email.HTMLBody)
	assert.Equal(t, 2006, email.Date.Year())
	assert.Contains(t, email.Headers["Message-Id"], "abc@example.com")
}

func TestParseRawMultipartPrefersPlain(t *testing.T) {
	raw := crlf(`From: jane@example.com
To: support@ticketdesk.local
Subject: Hello
Reply-To: real.customer@example.com
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/plain; charset=utf-8

plain body
--b1
Content-Type: text/html; charset=utf-8

<p>html body</p>
--b1--
`)

	email, err := ParseRaw("prov-2", raw)
	require.NoError(t, err)

	assert.Contains(t, email.Body, "plain body")
	assert.Contains(t, email.HTMLBody, "html body")
	assert.Equal(t, "real.customer@example.com", email.ReplyTo)
}

func TestParseRawGarbage(t *testing.T) {
	_, err := ParseRaw("prov-3", []byte("not an email at all"))
	assert.Error(t, err)
}
