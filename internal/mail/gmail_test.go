package mail

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gm "google.golang.org/api/gmail/v1"
)

func b64url(s string) string {
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(s))
}

func TestDecodeBase64URL(t *testing.T) {
	got, err := decodeBase64URL(b64url("hello, world"))
	require.NoError(t, err)
	assert.Equal(t, "hello, world", got)

	// URL-safe alphabet without padding, as Gmail sends it.
	got, err = decodeBase64URL("aGk_IH4-")
	require.NoError(t, err)
	assert.Equal(t, "hi? ~>", got)

	_, err = decodeBase64URL("%%%")
	assert.Error(t, err)
}

func TestExtractBody(t *testing.T) {
	t.Run("direct body", func(t *testing.T) {
		payload := &gm.MessagePart{
			Body: &gm.MessagePartBody{Data: b64url("plain body")},
		}
		assert.Equal(t, "plain body", extractBody(payload))
	})

	t.Run("prefers text/plain in multipart", func(t *testing.T) {
		payload := &gm.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []*gm.MessagePart{
				{MimeType: "text/html", Body: &gm.MessagePartBody{Data: b64url("<p>html</p>")}},
				{MimeType: "text/plain", Body: &gm.MessagePartBody{Data: b64url("plain wins")}},
			},
		}
		assert.Equal(t, "plain wins", extractBody(payload))
	})

	t.Run("falls back to html", func(t *testing.T) {
		payload := &gm.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []*gm.MessagePart{
				{MimeType: "text/html", Body: &gm.MessagePartBody{Data: b64url("<p>only html</p>")}},
			},
		}
		assert.Equal(t, "<p>only html</p>", extractBody(payload))
	})

	t.Run("recurses nested multipart", func(t *testing.T) {
		payload := &gm.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gm.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gm.MessagePart{
						{MimeType: "text/plain", Body: &gm.MessagePartBody{Data: b64url("nested plain")}},
					},
				},
			},
		}
		assert.Equal(t, "nested plain", extractBody(payload))
	})

	t.Run("no readable body", func(t *testing.T) {
		assert.Equal(t, "", extractBody(&gm.MessagePart{}))
	})
}

func TestExtractAttachments(t *testing.T) {
	payload := &gm.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gm.MessagePart{
			{MimeType: "text/plain", Body: &gm.MessagePartBody{Data: b64url("body")}},
			{
				Filename: "statement.pdf",
				MimeType: "application/pdf",
				Body:     &gm.MessagePartBody{Size: 1024, AttachmentId: "att-1"},
			},
			{
				MimeType: "multipart/alternative",
				Parts: []*gm.MessagePart{
					{Filename: "inline.png", MimeType: "image/png", Body: &gm.MessagePartBody{Size: 2}},
				},
			},
		},
	}

	atts := extractAttachments(payload)
	require.Len(t, atts, 2)
	assert.Equal(t, "statement.pdf", atts[0].Filename)
	assert.Equal(t, int64(1024), atts[0].Size)
	assert.Equal(t, "inline.png", atts[1].Filename)
}

func TestSenderAddress(t *testing.T) {
	assert.Equal(t, "alice@example.com", senderAddress(`Alice Smith <alice@example.com>`))
	assert.Equal(t, "bob@example.com", senderAddress("bob@example.com"))
	assert.Equal(t, "not an address", senderAddress(" not an address "))
}
