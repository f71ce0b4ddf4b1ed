// Package mail is the Gmail transport: polling the shared mailbox for
// unread support messages, fetching individual messages by ID, and
// sending approved replies.
package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"time"

	gm "google.golang.org/api/gmail/v1"

	"github.com/openhelpdesk/deskd/internal/types"
)

const defaultQuery = "is:unread in:inbox"

// Client wraps the Gmail API for the ingestion pipeline. It satisfies
// the orchestrator's Source interface.
type Client struct {
	svc   *gm.Service
	query string
	max   int64
}

// NewClient builds a transport over an authenticated Gmail service.
// query overrides the poll filter; empty means unread inbox mail.
func NewClient(svc *gm.Service, query string, maxResults int64) *Client {
	if query == "" {
		query = defaultQuery
	}
	if maxResults <= 0 {
		maxResults = 50
	}
	return &Client{svc: svc, query: query, max: maxResults}
}

// PollNew lists messages matching the poll query and fetches each in
// full. Individual fetch failures skip the message; it stays unread
// and is picked up on the next poll.
func (c *Client) PollNew(ctx context.Context) ([]*types.Message, error) {
	resp, err := c.svc.Users.Messages.List("me").
		Q(c.query).
		MaxResults(c.max).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}

	msgs := make([]*types.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		full, err := c.FetchByID(ctx, m.Id)
		if err != nil {
			continue
		}
		msgs = append(msgs, full)
	}
	return msgs, nil
}

// FetchByID fetches one message in full and converts it to the
// pipeline's message shape.
func (c *Client) FetchByID(ctx context.Context, messageID string) (*types.Message, error) {
	msg, err := c.svc.Users.Messages.Get("me", messageID).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", messageID, err)
	}

	headers := headerMap(msg.Payload.Headers)

	received := time.Now().UTC().Format(time.RFC3339)
	if msg.InternalDate > 0 {
		received = time.UnixMilli(msg.InternalDate).UTC().Format(time.RFC3339)
	}

	return &types.Message{
		ID:          msg.Id,
		ThreadID:    msg.ThreadId,
		Sender:      senderAddress(headers["From"]),
		Subject:     headers["Subject"],
		Body:        extractBody(msg.Payload),
		ReceivedAt:  received,
		Attachments: extractAttachments(msg.Payload),
	}, nil
}

// MarkRead removes the UNREAD label so the next poll skips the message.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	_, err := c.svc.Users.Messages.Modify("me", messageID, &gm.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("mark %s read: %w", messageID, err)
	}
	return nil
}

// Send delivers an approved draft as a plain text reply.
func (c *Client) Send(ctx context.Context, d *types.Draft) error {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", d.ToAddress)
	fmt.Fprintf(&b, "Subject: %s\r\n", d.Subject)
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(d.Body)

	raw := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(b.String()))
	_, err := c.svc.Users.Messages.Send("me", &gm.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("send draft %s: %w", d.DraftID, err)
	}
	return nil
}

// senderAddress strips the display name from a From header.
func senderAddress(from string) string {
	if addr, err := mail.ParseAddress(from); err == nil {
		return addr.Address
	}
	return strings.TrimSpace(from)
}

// extractBody pulls the plain text body out of a message payload,
// recursing through multipart structures and preferring text/plain
// over text/html.
func extractBody(payload *gm.MessagePart) string {
	if payload.Body != nil && payload.Body.Data != "" {
		if decoded, err := decodeBase64URL(payload.Body.Data); err == nil {
			return decoded
		}
	}

	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			if decoded, err := decodeBase64URL(part.Body.Data); err == nil {
				return decoded
			}
		}
		if len(part.Parts) > 0 {
			if body := extractBody(part); body != "" {
				return body
			}
		}
	}

	for _, part := range payload.Parts {
		if part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" {
			if decoded, err := decodeBase64URL(part.Body.Data); err == nil {
				return decoded
			}
		}
	}

	return ""
}

func extractAttachments(payload *gm.MessagePart) []types.Attachment {
	var attachments []types.Attachment

	var scan func(parts []*gm.MessagePart)
	scan = func(parts []*gm.MessagePart) {
		for _, part := range parts {
			if part.Filename != "" {
				att := types.Attachment{
					Filename: part.Filename,
					MimeType: part.MimeType,
				}
				if part.Body != nil {
					att.Size = part.Body.Size
				}
				attachments = append(attachments, att)
			}
			if len(part.Parts) > 0 {
				scan(part.Parts)
			}
		}
	}

	if len(payload.Parts) > 0 {
		scan(payload.Parts)
	}
	return attachments
}

func headerMap(headers []*gm.MessagePartHeader) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Name] = h.Value
	}
	return m
}

// decodeBase64URL decodes Gmail's base64url-encoded content, tolerating
// missing padding.
func decodeBase64URL(data string) (string, error) {
	data = strings.ReplaceAll(data, "-", "+")
	data = strings.ReplaceAll(data, "_", "/")
	switch len(data) % 4 {
	case 2:
		data += "=="
	case 3:
		data += "="
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
