package mailer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	s := NewSMTPMailer("smtp.example.com", 587, "u", "p", "Gallery", nil)
	msg := s.Build(Message{
		From:      "sender@example.com",
		To:        []string{"a@example.com", "b@example.com"},
		Cc:        []string{"sender@example.com"},
		Subject:   "Breaking",
		Body:      "<p>hello</p>",
		ContextID: "article-1",
	})

	assert.Equal(t, []string{"a@example.com", "b@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"sender@example.com"}, msg.GetHeader("Cc"))
	assert.Equal(t, []string{"article-1"}, msg.GetHeader("X-Gallery-Context"))
	require.Len(t, msg.GetHeader("From"), 1)
	assert.Contains(t, msg.GetHeader("From")[0], "Gallery")

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Subject: Breaking")
}

func TestSendWithoutRelay(t *testing.T) {
	s := NewSMTPMailer("", 0, "", "", "", nil)
	err := s.Send(context.Background(), Message{To: []string{"a@example.com"}})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
