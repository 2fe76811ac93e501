package mailbox

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Client dials IMAP servers. It implements Dialer.
type Client struct{}

// NewClient creates the IMAP dialer.
func NewClient() *Client {
	return &Client{}
}

// Dial connects to the IMAP server, authenticates, and selects INBOX.
// The returned session is scoped to one scan run; the caller must close
// it on every exit path.
func (c *Client) Dial(ctx context.Context, cfg ConnectConfig) (Session, error) {
	addr := cfg.Server + ":" + cfg.Port

	var client *imapclient.Client
	var err error

	if cfg.UseSSL {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(cfg.Email, cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{
			Message: fmt.Sprintf("authentication failed for %s: %v", cfg.Email, err),
		}
	}

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}

	return &imapSession{client: client}, nil
}

// imapSession wraps a connected go-imap client with INBOX selected.
type imapSession struct {
	client *imapclient.Client
}

func (s *imapSession) Search(_ context.Context, mode Mode) ([]uint32, error) {
	criteria := &imap.SearchCriteria{}

	switch mode.kind {
	case "all":
		// No criteria: the whole mailbox.
	case "since":
		criteria.Since = time.Now().AddDate(0, 0, -mode.days)
	default:
		criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	}

	searchData, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching inbox (%s): %w", mode, err)
	}

	uids := searchData.AllUIDs()
	handles := make([]uint32, len(uids))
	for i, uid := range uids {
		handles[i] = uint32(uid)
	}

	return handles, nil
}

func (s *imapSession) Fetch(_ context.Context, uid uint32) ([]byte, error) {
	uidSet := imap.UIDSetNum(imap.UID(uid))

	bodySection := &imap.FetchItemBodySection{}

	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message UID %d not found", uid)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message UID %d: %w", uid, err)
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, fmt.Errorf("message UID %d has no body section", uid)
	}

	if err := fetchCmd.Close(); err != nil {
		return raw, fmt.Errorf("closing fetch for UID %d: %w", uid, err)
	}

	return raw, nil
}

func (s *imapSession) Close() error {
	return s.client.Logout().Wait()
}
