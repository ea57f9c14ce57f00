package attach

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAndSave(t *testing.T) {
	raw := strings.ReplaceAll(`From: jane@example.com
To: support@ticketdesk.local
Subject: With attachment
Content-Type: multipart/mixed; boundary="b1"

--b1
Content-Type: text/plain; charset=utf-8

see attached
--b1
Content-Type: text/plain; charset=utf-8
Content-Disposition: attachment; filename="notes.txt"

attachment payload
--b1--
`, "\n", "\r\n")

	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	metas, err := store.ExtractAndSave([]byte(raw), "prov-1")
	require.NoError(t, err)
	require.Len(t, metas, 1)

	assert.Equal(t, "notes.txt", metas[0].Filename)
	assert.Equal(t, filepath.Join("msg_prov-1", "notes.txt"), metas[0].FilePath)
	assert.Greater(t, metas[0].Size, int64(0))

	content, err := os.ReadFile(filepath.Join(store.baseDir, metas[0].FilePath))
	require.NoError(t, err)
	assert.Contains(t, string(content), "attachment payload")
}

func TestExtractAndSaveNoAttachments(t *testing.T) {
	raw := strings.ReplaceAll(`From: jane@example.com
Subject: Plain
Content-Type: text/plain; charset=utf-8

just text
`, "\n", "\r\n")

	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	metas, err := store.ExtractAndSave([]byte(raw), "prov-2")
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c.txt", sanitizeFilename(`a/b\c.txt`))
	assert.Equal(t, "plain.pdf", sanitizeFilename("plain.pdf"))
}
