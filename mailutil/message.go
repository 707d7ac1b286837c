package mailutil

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/mail"
)

// Message is a replacement for golang's mail.Message. The only
// difference is that the body is stored as a byte slice: mail.Message.Body
// is a bufio.Reader we can't rewind, so post-processing it (archiving,
// then per-recipient re-serialization) would otherwise need one fresh
// read per consumer.
type Message struct {
	Header mail.Header
	Body   []byte
}

func NewMessage() *Message {
	return &Message{
		Header: make(mail.Header),
	}
}

// ReadMessage wraps mail.ReadMessage, buffering the body.
func ReadMessage(r io.Reader) (*Message, error) {

	msg, err := mail.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("mail.ReadMessage returned %v", err)
	}

	body, err := ioutil.ReadAll(msg.Body)
	if err != nil {
		return nil, err
	}

	return &Message{
		Header: msg.Header,
		Body:   body,
	}, nil
}

// Copy returns a deep copy: mutating the clone's header or body never
// affects the original.
func (m *Message) Copy() *Message {
	header := make(mail.Header, len(m.Header))
	for k, v := range m.Header {
		vv := make([]string, len(v))
		copy(vv, v)
		header[k] = vv
	}

	body := make([]byte, len(m.Body))
	copy(body, m.Body)

	return &Message{Header: header, Body: body}
}
