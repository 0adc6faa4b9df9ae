package mail

import (
	"bytes"
	"io"
	"mime"
	netmail "net/mail"

	"github.com/pkg/errors"
)

// Message is a patch received by mail. The raw bytes are kept around
// so the patch can be handed to `git am` untouched.
type Message struct {
	header netmail.Header
	raw    []byte
}

func Parse(r io.Reader) (*Message, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "reading message")
	}

	m, err := netmail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing message")
	}

	return &Message{
		header: m.Header,
		raw:    raw,
	}, nil
}

// MessageID returns the message id as written in the mail header.
func (m *Message) MessageID() string {
	return m.header.Get("Message-Id")
}

func (m *Message) Subject() string {
	subject := m.header.Get("Subject")

	var dec mime.WordDecoder

	decoded, err := dec.DecodeHeader(subject)
	if err != nil {
		return subject
	}

	return decoded
}

// Slug returns a version of the subject that is safe to use as a git
// branch name.
func (m *Message) Slug() string {
	return SlugifySubject(m.Subject())
}

func (m *Message) Bytes() []byte {
	return m.raw
}
