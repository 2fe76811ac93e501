package mailbox

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Message is the canonical decoded form of one scanned email. It exists
// only for the duration of processing that message.
type Message struct {
	// MessageID is the mailbox-assigned Message-ID header value; may be
	// empty for malformed messages.
	MessageID string

	// Subject is the decoded Unicode subject.
	Subject string

	// FromName and FromEmail are the sender's display name and address.
	FromName  string
	FromEmail string

	// FromHeader is the decoded raw From header text, used for
	// marketing filtering.
	FromHeader string

	// Body is the first text/plain part; empty if none was found.
	Body string

	// Date is the parsed Date header; zero when absent or malformed.
	Date time.Time
}

// Mode selects which messages a scan considers.
type Mode struct {
	kind string
	days int
}

// Unseen scans unread messages only. This is the default mode.
func Unseen() Mode { return Mode{kind: "unseen"} }

// All scans the entire mailbox.
func All() Mode { return Mode{kind: "all"} }

// SinceDays scans messages dated within the last n days, filtered
// server-side at day granularity.
func SinceDays(n int) Mode { return Mode{kind: "since", days: n} }

func (m Mode) String() string {
	switch m.kind {
	case "all":
		return "all"
	case "since":
		return fmt.Sprintf("since_%dd", m.days)
	default:
		return "unseen"
	}
}

// ConnectConfig holds the resolved mailbox connection parameters for
// one scan run.
type ConnectConfig struct {
	Server   string
	Port     string
	Email    string
	Password string
	UseSSL   bool
}

// Configured reports whether the minimum credentials are present.
func (c ConnectConfig) Configured() bool {
	return c.Server != "" && c.Email != "" && c.Password != ""
}

// Session is one open mailbox connection with INBOX selected. It is
// scoped to a single scan run and must be closed on every exit path.
type Session interface {
	// Search lists candidate message handles for the given mode, in the
	// mailbox's native order.
	Search(ctx context.Context, mode Mode) ([]uint32, error)

	// Fetch retrieves the full raw message for one handle.
	Fetch(ctx context.Context, uid uint32) ([]byte, error)

	Close() error
}

// Dialer opens mailbox sessions. The IMAP implementation is Client;
// tests substitute fakes.
type Dialer interface {
	Dial(ctx context.Context, cfg ConnectConfig) (Session, error)
}

// AuthError indicates that the mailbox rejected the configured
// credentials.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("mailbox auth error: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an
// AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
