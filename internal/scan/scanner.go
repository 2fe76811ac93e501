package scan

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kmayer/taskflow/internal/classify"
	"github.com/kmayer/taskflow/internal/config"
	"github.com/kmayer/taskflow/internal/mailbox"
	"github.com/kmayer/taskflow/internal/model"
	"github.com/kmayer/taskflow/internal/rules"
	"github.com/kmayer/taskflow/internal/store"
)

const (
	// inboxFolder is the only folder scanned.
	inboxFolder = "INBOX"

	titleLimit = 500
	bodyLimit  = 5000
)

// Scanner drives one mailbox scan: it connects, lists candidates for
// the requested mode, and decides each message in sequence. All
// collaborators are injected; the scanner holds no hidden state beyond
// them.
type Scanner struct {
	store   store.Store
	rules   *rules.Source
	dialer  mailbox.Dialer
	threads ThreadMatcher
	cfg     *config.AppConfig
	logger  *zap.Logger
}

// NewScanner creates a scanner with the given collaborators.
func NewScanner(
	st store.Store,
	ruleSource *rules.Source,
	dialer mailbox.Dialer,
	threads ThreadMatcher,
	cfg *config.AppConfig,
	logger *zap.Logger,
) *Scanner {
	return &Scanner{
		store:   st,
		rules:   ruleSource,
		dialer:  dialer,
		threads: threads,
		cfg:     cfg,
		logger:  logger,
	}
}

// runConfig is the configuration resolved once at the start of a run,
// so a mid-scan settings change cannot leave the run inconsistent.
type runConfig struct {
	connect mailbox.ConnectConfig
	dueDays int
}

// resolveRunConfig applies the settings-over-static precedence for the
// mailbox credentials and the due-day offset.
func (s *Scanner) resolveRunConfig(ctx context.Context) runConfig {
	rc := runConfig{
		connect: mailbox.ConnectConfig{
			Server:   s.cfg.IMAP.Server,
			Port:     s.cfg.IMAP.Port,
			Email:    s.cfg.IMAP.Email,
			Password: s.cfg.IMAP.Password,
			UseSSL:   s.cfg.IMAP.UseSSL,
		},
		dueDays: s.cfg.Scan.DueDays,
	}

	rc.connect.Server = s.settingOr(ctx, config.SettingIMAPServer, rc.connect.Server)
	rc.connect.Port = s.settingOr(ctx, config.SettingIMAPPort, rc.connect.Port)
	rc.connect.Email = s.settingOr(ctx, config.SettingIMAPEmail, rc.connect.Email)
	rc.connect.Password = s.settingOr(ctx, config.SettingIMAPPassword, rc.connect.Password)

	if v, ok, err := s.store.GetSetting(ctx, config.SettingIMAPUseSSL); err == nil && ok && v != "" {
		rc.connect.UseSSL = strings.EqualFold(v, "true")
	}
	if v, ok, err := s.store.GetSetting(ctx, config.SettingDueDays); err == nil && ok {
		if days, perr := strconv.Atoi(v); perr == nil && days >= 0 {
			rc.dueDays = days
		}
	}

	return rc
}

func (s *Scanner) settingOr(ctx context.Context, key, fallback string) string {
	if v, ok, err := s.store.GetSetting(ctx, key); err == nil && ok && v != "" {
		return v
	}
	return fallback
}

// TestConnection verifies the mailbox credentials by connecting and
// disconnecting. It never returns an error; the message carries the
// failure detail.
func (s *Scanner) TestConnection(ctx context.Context) (bool, string) {
	rc := s.resolveRunConfig(ctx)
	if !rc.connect.Configured() {
		return false, "IMAP credentials not configured"
	}

	sess, err := s.dialer.Dial(ctx, rc.connect)
	if err != nil {
		return false, err.Error()
	}
	_ = sess.Close()

	return true, "Connection successful"
}

// Run performs one scan in the given mode. It always returns a
// structured result: connection and listing failures short-circuit with
// success=false, while per-message failures are recovered into the
// error list and the run continues. Each message is fully decided and
// committed before the next is fetched.
func (s *Scanner) Run(ctx context.Context, mode mailbox.Mode) Result {
	rc := s.resolveRunConfig(ctx)

	if !rc.connect.Configured() {
		s.logger.Warn("IMAP credentials not configured")
		return failure("Could not connect to IMAP")
	}

	sess, err := s.dialer.Dial(ctx, rc.connect)
	if err != nil {
		s.logger.Error("IMAP connection failed", zap.Error(err))
		return failure("Could not connect to IMAP")
	}
	defer func() { _ = sess.Close() }()

	uids, err := sess.Search(ctx, mode)
	if err != nil {
		s.logger.Error("inbox search failed", zap.Error(err))
		return failure("Failed to search inbox")
	}

	s.logger.Info("scanning inbox",
		zap.Int("messages", len(uids)),
		zap.Stringer("mode", mode),
	)

	res := Result{Errors: []string{}}

	for _, uid := range uids {
		if ctx.Err() != nil {
			res.Message = fmt.Sprintf("Scan interrupted: %v", ctx.Err())
			return res
		}

		raw, err := sess.Fetch(ctx, uid)
		if err != nil {
			s.logger.Error("fetching message failed",
				zap.Uint32("uid", uid), zap.Error(err))
			res.Errors = append(res.Errors, err.Error())
			continue
		}

		msg := mailbox.Decode(raw)
		res.EmailsScanned++

		if err := s.processMessage(ctx, &res, rc, msg); err != nil {
			s.logger.Error("processing message failed",
				zap.Uint32("uid", uid),
				zap.String("message_id", msg.MessageID),
				zap.Error(err),
			)
			res.Errors = append(res.Errors, err.Error())
		}
	}

	res.Success = true
	res.Message = fmt.Sprintf("Scan complete. Scanned %d emails, created %d tasks.",
		res.EmailsScanned, res.TasksCreated)

	return res
}

// processMessage applies the per-message decision chain in its fixed
// precedence order. The first matching branch terminates processing for
// the message. A returned error is a recoverable per-message failure.
func (s *Scanner) processMessage(
	ctx context.Context,
	res *Result,
	rc runConfig,
	msg mailbox.Message,
) error {
	info := classify.ExtractCustomerInfo(msg.FromHeader)

	// 1. Already processed: a record exists, so only log the skip.
	seen, err := s.store.IsProcessed(ctx, msg.MessageID)
	if err != nil {
		return err
	}
	if seen {
		res.SkippedDuplicate++
		return s.store.RecordScan(ctx, nil, &model.ScanLogEntry{
			MessageID:   msg.MessageID,
			Subject:     truncateRunes(msg.Subject, titleLimit),
			FromAddress: info.Email,
			Result:      model.ScanResultSkippedDuplicate,
			Reason:      "Already processed",
		})
	}

	// Rules are re-read per message so edits apply mid-deployment
	// without a restart.
	ruleSet := s.rules.Load(ctx)

	// 2. Marketing mail: mark it seen so it is never re-classified,
	// even though no task is made.
	if phrase, ok := classify.IsMarketing(ruleSet.MarketingFilters, msg.Subject, msg.Body, msg.FromHeader); ok {
		res.SkippedMarketing++
		return s.store.RecordScan(ctx,
			&model.ProcessedEmail{MessageID: msg.MessageID, Folder: inboxFolder},
			&model.ScanLogEntry{
				MessageID:   msg.MessageID,
				Subject:     truncateRunes(msg.Subject, titleLimit),
				FromAddress: info.Email,
				Result:      model.ScanResultSkippedMarketing,
				Reason:      fmt.Sprintf("Marketing filter: %q", phrase),
			})
	}

	// 3. No trigger match: log it but leave the message unrecorded so
	// a future, updated rule set can still pick it up.
	category, trigger, ok := classify.ClassifyTrigger(ruleSet.Triggers, msg.Subject, msg.Body)
	if !ok {
		res.SkippedNoTrigger++
		return s.store.RecordScan(ctx, nil, &model.ScanLogEntry{
			MessageID:   msg.MessageID,
			Subject:     truncateRunes(msg.Subject, titleLimit),
			FromAddress: info.Email,
			Result:      model.ScanResultSkippedNoTrigger,
			Reason:      "No trigger words found",
		})
	}

	// 4. Existing conversation thread: mark seen, reference the task.
	normalized := classify.NormalizeSubject(msg.Subject)
	existing, err := s.threads.Match(ctx, normalized, info.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		res.SkippedDuplicate++
		return s.store.RecordScan(ctx,
			&model.ProcessedEmail{MessageID: msg.MessageID, Folder: inboxFolder},
			&model.ScanLogEntry{
				MessageID:   msg.MessageID,
				Subject:     truncateRunes(msg.Subject, titleLimit),
				FromAddress: info.Email,
				Result:      model.ScanResultSkippedThread,
				Reason:      fmt.Sprintf("Thread exists: Task #%s", existing.ID),
				TaskID:      existing.ID,
			})
	}

	// 5. Create the task.
	refs := classify.ExtractReferenceNumbers(msg.Subject, msg.Body)
	priority := classify.DeterminePriority(msg.Subject, msg.Body)

	base := msg.Date
	if base.IsZero() {
		base = time.Now()
	}
	due := base.AddDate(0, 0, rc.dueDays)

	title := truncateRunes(msg.Subject, titleLimit)
	if title == "" {
		title = fmt.Sprintf("Email from %s", info.Name)
	}

	task := model.Task{
		Title:         title,
		Description:   truncateRunes(msg.Body, bodyLimit),
		CustomerName:  info.Name,
		CustomerEmail: info.Email,
		Company:       info.Company,
		PONumber:      refs.PONumber,
		SONumber:      refs.SONumber,
		QuoteNumber:   refs.QuoteNumber,
		Priority:      priority,
		DueDate:       &due,
		Status:        model.StatusScheduled,
		SourceEmailID: msg.MessageID,
	}

	err = s.store.CreateTaskFromScan(ctx, &task,
		&model.ProcessedEmail{MessageID: msg.MessageID, Folder: inboxFolder},
		&model.ScanLogEntry{
			MessageID:   msg.MessageID,
			Subject:     truncateRunes(msg.Subject, titleLimit),
			FromAddress: info.Email,
			Result:      model.ScanResultCreated,
			Reason:      fmt.Sprintf("Trigger: %q (%s)", trigger, category),
		})
	if err != nil {
		return err
	}

	res.TasksCreated++
	res.Created = append(res.Created, task)

	s.logger.Info("created task from email",
		zap.String("task_id", task.ID),
		zap.String("title", truncateRunes(task.Title, 50)),
		zap.String("category", category),
		zap.String("priority", priority),
	)

	return nil
}

// truncateRunes shortens s to at most max runes.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
