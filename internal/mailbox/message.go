package mailbox

import (
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// Decode parses a raw RFC 5322 message into its canonical form. It is
// deliberately tolerant: encoded-word headers are decoded best-effort,
// unknown charsets fall back to replacement characters, and a message
// that cannot be parsed at all is treated as a headerless plain-text
// body. It never fails.
func Decode(raw []byte) Message {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if mr == nil || (err != nil && !message.IsUnknownCharset(err)) {
		return Message{Body: string(raw)}
	}
	defer mr.Close()

	var msg Message

	// Best-effort header decode: keep whatever value came back even
	// when the decoder reports a charset problem.
	msg.Subject, _ = mr.Header.Subject()

	if id, err := mr.Header.MessageID(); err == nil {
		msg.MessageID = id
	}

	if date, err := mr.Header.Date(); err == nil {
		msg.Date = date
	}

	msg.FromHeader, _ = mr.Header.Text("From")
	if addrs, err := mr.Header.AddressList("From"); err == nil && len(addrs) > 0 {
		msg.FromName = addrs[0].Name
		msg.FromEmail = addrs[0].Address
	}

	msg.Body = firstTextPart(mr)

	return msg
}

// firstTextPart walks the MIME structure and returns the first inline
// text/plain part. Part decode errors are skipped, not propagated.
func firstTextPart(mr *mail.Reader) string {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return ""
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return ""
		}
		if part == nil {
			return ""
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := header.ContentType()
		if !strings.HasPrefix(contentType, "text/plain") {
			continue
		}

		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}
		return string(body)
	}
}
