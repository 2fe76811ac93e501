package scan_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kmayer/taskflow/internal/config"
	"github.com/kmayer/taskflow/internal/mailbox"
	"github.com/kmayer/taskflow/internal/model"
	"github.com/kmayer/taskflow/internal/rules"
	"github.com/kmayer/taskflow/internal/scan"
	"github.com/kmayer/taskflow/internal/store"
	"github.com/kmayer/taskflow/tests/testutil"
)

type fakeSession struct {
	order    []uint32
	msgs     map[uint32][]byte
	fetchErr map[uint32]error
	closed   bool
}

func (f *fakeSession) Search(_ context.Context, _ mailbox.Mode) ([]uint32, error) {
	return f.order, nil
}

func (f *fakeSession) Fetch(_ context.Context, uid uint32) ([]byte, error) {
	if err, ok := f.fetchErr[uid]; ok {
		return nil, err
	}
	return f.msgs[uid], nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

type fakeDialer struct {
	sess *fakeSession
	err  error
}

func (f *fakeDialer) Dial(_ context.Context, _ mailbox.ConnectConfig) (mailbox.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sess, nil
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		IMAP: config.IMAPConfig{
			Server:   "imap.example.com",
			Port:     "993",
			Email:    "intake@example.com",
			Password: "secret",
			UseSSL:   true,
		},
		Scan: config.ScanConfig{IntervalMinutes: 5, DueDays: 3},
	}
}

func newTestScanner(t *testing.T, st store.Store, dialer mailbox.Dialer) *scan.Scanner {
	t.Helper()
	return scan.NewScanner(
		st,
		rules.NewSource(st),
		dialer,
		scan.NewTitleThreadMatcher(st),
		testConfig(),
		zap.NewNop(),
	)
}

func rawMessage(messageID, from, subject, body string) []byte {
	var b strings.Builder
	if messageID != "" {
		b.WriteString("Message-ID: <" + messageID + ">\r\n")
	}
	if from != "" {
		b.WriteString("From: " + from + "\r\n")
	}
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: Mon, 31 Aug 2026 09:30:00 +0000\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func TestRunCreatesTask(t *testing.T) {
	st := testutil.NewTestStore(t)
	sess := &fakeSession{
		order: []uint32{1},
		msgs: map[uint32][]byte{
			1: rawMessage("rfq-1@acme.com", "Jane Doe <jane@acme.com>",
				"Urgent: RFQ for bracket assembly", "Please quote ASAP"),
		},
	}
	scanner := newTestScanner(t, st, &fakeDialer{sess: sess})

	res := scanner.Run(context.Background(), mailbox.Unseen())

	if !res.Success {
		t.Fatalf("Success = false, message = %q", res.Message)
	}
	if res.EmailsScanned != 1 || res.TasksCreated != 1 {
		t.Errorf("scanned %d, created %d, want 1 and 1", res.EmailsScanned, res.TasksCreated)
	}
	if res.SkippedMarketing != 0 || res.SkippedNoTrigger != 0 || res.SkippedDuplicate != 0 {
		t.Errorf("unexpected skips: %+v", res)
	}
	if len(res.Errors) != 0 {
		t.Errorf("Errors = %v", res.Errors)
	}
	if len(res.Created) != 1 {
		t.Fatalf("Created has %d tasks, want 1", len(res.Created))
	}
	if !sess.closed {
		t.Error("session not closed after run")
	}

	task := res.Created[0]
	if task.Title != "Urgent: RFQ for bracket assembly" {
		t.Errorf("Title = %q", task.Title)
	}
	if task.Priority != model.PriorityHigh {
		t.Errorf("Priority = %q, want high", task.Priority)
	}
	if task.CustomerName != "Jane Doe" || task.CustomerEmail != "jane@acme.com" {
		t.Errorf("customer = %q <%s>", task.CustomerName, task.CustomerEmail)
	}
	if task.Company != "Acme" {
		t.Errorf("Company = %q, want Acme", task.Company)
	}
	if task.Status != model.StatusScheduled {
		t.Errorf("Status = %q, want scheduled", task.Status)
	}
	if task.DueDate == nil {
		t.Error("DueDate not set")
	}

	stored, err := st.GetTaskByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTaskByID: %v", err)
	}
	if stored.SourceEmailID != "rfq-1@acme.com" {
		t.Errorf("SourceEmailID = %q", stored.SourceEmailID)
	}
}

func TestRunSkipsDuplicateOnRescan(t *testing.T) {
	st := testutil.NewTestStore(t)
	sess := &fakeSession{
		order: []uint32{1},
		msgs: map[uint32][]byte{
			1: rawMessage("rfq-1@acme.com", "Jane Doe <jane@acme.com>",
				"RFQ for bracket assembly", "Please quote these parts"),
		},
	}
	scanner := newTestScanner(t, st, &fakeDialer{sess: sess})
	ctx := context.Background()

	first := scanner.Run(ctx, mailbox.Unseen())
	if first.TasksCreated != 1 {
		t.Fatalf("first run created %d tasks, want 1", first.TasksCreated)
	}

	second := scanner.Run(ctx, mailbox.Unseen())
	if !second.Success {
		t.Fatalf("second run failed: %q", second.Message)
	}
	if second.TasksCreated != 0 || second.SkippedDuplicate != 1 {
		t.Errorf("second run: created %d, duplicates %d, want 0 and 1",
			second.TasksCreated, second.SkippedDuplicate)
	}

	tasks, err := st.GetTasks(ctx, store.TaskFilter{})
	if err != nil {
		t.Fatalf("GetTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("got %d tasks after rescan, want 1", len(tasks))
	}
}

func TestRunNoTriggerStaysEligible(t *testing.T) {
	st := testutil.NewTestStore(t)
	sess := &fakeSession{
		order: []uint32{1},
		msgs: map[uint32][]byte{
			1: rawMessage("chat-1@acme.com", "Jane Doe <jane@acme.com>",
				"Lunch plans", "See you at noon"),
		},
	}
	scanner := newTestScanner(t, st, &fakeDialer{sess: sess})
	ctx := context.Background()

	res := scanner.Run(ctx, mailbox.Unseen())
	if res.SkippedNoTrigger != 1 || res.TasksCreated != 0 {
		t.Errorf("no-trigger %d, created %d, want 1 and 0", res.SkippedNoTrigger, res.TasksCreated)
	}

	// Not marked processed: a later scan with broader rules can still
	// pick the message up.
	processed, err := st.IsProcessed(ctx, "chat-1@acme.com")
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if processed {
		t.Error("no-trigger message was marked processed")
	}

	again := scanner.Run(ctx, mailbox.Unseen())
	if again.SkippedNoTrigger != 1 || again.SkippedDuplicate != 0 {
		t.Errorf("rescan: no-trigger %d, duplicates %d, want 1 and 0",
			again.SkippedNoTrigger, again.SkippedDuplicate)
	}
}

func TestRunMarketingRecordedProcessed(t *testing.T) {
	st := testutil.NewTestStore(t)
	sess := &fakeSession{
		order: []uint32{1},
		msgs: map[uint32][]byte{
			1: rawMessage("promo-1@deals.example", "Deals <noreply@deals.example>",
				"Quote of the week!", "Big savings. Click unsubscribe to opt out."),
		},
	}
	scanner := newTestScanner(t, st, &fakeDialer{sess: sess})
	ctx := context.Background()

	res := scanner.Run(ctx, mailbox.Unseen())
	if res.SkippedMarketing != 1 || res.TasksCreated != 0 {
		t.Errorf("marketing %d, created %d, want 1 and 0", res.SkippedMarketing, res.TasksCreated)
	}

	// Marketing mail is permanently recorded so it is never re-classified.
	processed, err := st.IsProcessed(ctx, "promo-1@deals.example")
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if !processed {
		t.Error("marketing message not marked processed")
	}

	again := scanner.Run(ctx, mailbox.Unseen())
	if again.SkippedDuplicate != 1 || again.SkippedMarketing != 0 {
		t.Errorf("rescan: duplicates %d, marketing %d, want 1 and 0",
			again.SkippedDuplicate, again.SkippedMarketing)
	}
}

func TestRunSkipsExistingThread(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	existing := model.Task{
		Title:         "Quote for bracket assembly",
		CustomerEmail: "jane@acme.com",
	}
	if err := st.CreateTask(ctx, &existing); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	sess := &fakeSession{
		order: []uint32{1},
		msgs: map[uint32][]byte{
			1: rawMessage("reply-1@acme.com", "Jane Doe <jane@acme.com>",
				"Re: Quote for bracket assembly", "Any update on the quote?"),
		},
	}
	scanner := newTestScanner(t, st, &fakeDialer{sess: sess})

	res := scanner.Run(ctx, mailbox.Unseen())
	if res.TasksCreated != 0 || res.SkippedDuplicate != 1 {
		t.Errorf("created %d, duplicates %d, want 0 and 1", res.TasksCreated, res.SkippedDuplicate)
	}

	logs, err := st.GetScanLogs(ctx, 10)
	if err != nil {
		t.Fatalf("GetScanLogs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d log entries, want 1", len(logs))
	}
	if logs[0].Result != model.ScanResultSkippedThread {
		t.Errorf("Result = %q, want skipped_thread", logs[0].Result)
	}
	if logs[0].TaskID != existing.ID {
		t.Errorf("log TaskID = %q, want %q", logs[0].TaskID, existing.ID)
	}

	// A reply to the existing thread is marked processed.
	processed, err := st.IsProcessed(ctx, "reply-1@acme.com")
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if !processed {
		t.Error("thread reply not marked processed")
	}
}

func TestRunConnectionFailure(t *testing.T) {
	st := testutil.NewTestStore(t)
	scanner := newTestScanner(t, st, &fakeDialer{err: errors.New("dial tcp: connection refused")})

	res := scanner.Run(context.Background(), mailbox.Unseen())
	if res.Success {
		t.Error("Success = true after connection failure")
	}
	if res.Message != "Could not connect to IMAP" {
		t.Errorf("Message = %q", res.Message)
	}
	if res.EmailsScanned != 0 {
		t.Errorf("EmailsScanned = %d, want 0", res.EmailsScanned)
	}
}

func TestRunMissingCredentials(t *testing.T) {
	st := testutil.NewTestStore(t)
	scanner := scan.NewScanner(
		st,
		rules.NewSource(st),
		&fakeDialer{err: errors.New("should not dial")},
		scan.NewTitleThreadMatcher(st),
		&config.AppConfig{},
		zap.NewNop(),
	)

	res := scanner.Run(context.Background(), mailbox.Unseen())
	if res.Success {
		t.Error("Success = true without credentials")
	}
	if res.Message != "Could not connect to IMAP" {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestRunSettingsOverrideCredentials(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	// Static config is empty; credentials come from settings.
	for key, value := range map[string]string{
		config.SettingIMAPServer:   "imap.example.com",
		config.SettingIMAPEmail:    "intake@example.com",
		config.SettingIMAPPassword: "secret",
	} {
		if err := st.SetSetting(ctx, key, value); err != nil {
			t.Fatalf("SetSetting: %v", err)
		}
	}

	sess := &fakeSession{order: nil, msgs: nil}
	scanner := scan.NewScanner(
		st,
		rules.NewSource(st),
		&fakeDialer{sess: sess},
		scan.NewTitleThreadMatcher(st),
		&config.AppConfig{},
		zap.NewNop(),
	)

	res := scanner.Run(ctx, mailbox.Unseen())
	if !res.Success {
		t.Errorf("Success = false with settings-backed credentials: %q", res.Message)
	}
}

func TestRunRecoverableFetchError(t *testing.T) {
	st := testutil.NewTestStore(t)
	sess := &fakeSession{
		order: []uint32{1, 2},
		msgs: map[uint32][]byte{
			2: rawMessage("rfq-2@acme.com", "Jane Doe <jane@acme.com>",
				"RFQ for bracket assembly", "Please quote"),
		},
		fetchErr: map[uint32]error{1: errors.New("fetch failed for uid 1")},
	}
	scanner := newTestScanner(t, st, &fakeDialer{sess: sess})

	res := scanner.Run(context.Background(), mailbox.Unseen())
	if !res.Success {
		t.Fatalf("Success = false: %q", res.Message)
	}
	if len(res.Errors) != 1 {
		t.Errorf("Errors = %v, want one entry", res.Errors)
	}
	if res.EmailsScanned != 1 || res.TasksCreated != 1 {
		t.Errorf("scanned %d, created %d, want 1 and 1", res.EmailsScanned, res.TasksCreated)
	}
}

func TestTestConnection(t *testing.T) {
	st := testutil.NewTestStore(t)

	sess := &fakeSession{}
	scanner := newTestScanner(t, st, &fakeDialer{sess: sess})
	ok, msg := scanner.TestConnection(context.Background())
	if !ok {
		t.Errorf("TestConnection failed: %q", msg)
	}
	if !sess.closed {
		t.Error("session not closed after connection test")
	}

	failing := newTestScanner(t, st, &fakeDialer{err: &mailbox.AuthError{Message: "bad credentials"}})
	ok, msg = failing.TestConnection(context.Background())
	if ok {
		t.Error("TestConnection succeeded with failing dialer")
	}
	if !strings.Contains(msg, "bad credentials") {
		t.Errorf("message = %q", msg)
	}

	unconfigured := scan.NewScanner(st, rules.NewSource(st), &fakeDialer{},
		scan.NewTitleThreadMatcher(st), &config.AppConfig{}, zap.NewNop())
	ok, msg = unconfigured.TestConnection(context.Background())
	if ok || msg != "IMAP credentials not configured" {
		t.Errorf("got (%v, %q)", ok, msg)
	}
}
