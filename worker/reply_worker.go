package worker

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"equireach/config"
	"equireach/models"
	"equireach/utils"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
)

// StatusUpdater is the subset of the history store the reply worker needs
type StatusUpdater interface {
	LatestByEmail(ctx context.Context, email string) (*models.OutreachRecord, error)
	UpdateStatus(ctx context.Context, seq uint, status models.OutreachStatus) (*models.OutreachRecord, error)
}

// ReplyWorker polls the outreach mailbox and marks history records as replied or opted out
type ReplyWorker struct {
	cfg     config.IMAPConfig
	history StatusUpdater
	logger  *logrus.Entry
}

func NewReplyWorker(cfg config.IMAPConfig, history StatusUpdater, logger *logrus.Entry) *ReplyWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Minute
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &ReplyWorker{cfg: cfg, history: history, logger: logger}
}

func (rw *ReplyWorker) Start(ctx context.Context) {
	if rw.cfg.Host == "" {
		rw.logger.Info("IMAP host not configured, reply tracking disabled")
		return
	}

	rw.logger.WithField("interval", rw.cfg.PollInterval.String()).Info("Starting reply worker...")
	ticker := time.NewTicker(rw.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := rw.poll(ctx); err != nil {
				utils.LogError("reply_poll", err, map[string]interface{}{"imap_host": rw.cfg.Host})
			}
		case <-ctx.Done():
			rw.logger.Info("Stopping reply worker...")
			return
		}
	}
}

func (rw *ReplyWorker) dial() (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", rw.cfg.Host, rw.cfg.Port)
	tlsConfig := &tls.Config{ServerName: rw.cfg.Host}

	switch strings.ToUpper(rw.cfg.Encryption) {
	case "SSL", "TLS":
		return client.DialTLS(addr, tlsConfig)
	case "STARTTLS":
		c, err := client.Dial(addr)
		if err != nil {
			return nil, err
		}
		if err := c.StartTLS(tlsConfig); err != nil {
			_ = c.Logout()
			return nil, err
		}
		return c, nil
	default:
		return client.Dial(addr)
	}
}

func (rw *ReplyWorker) poll(ctx context.Context) error {
	c, err := rw.dial()
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer c.Logout()

	if err := c.Login(rw.cfg.Username, rw.cfg.Password); err != nil {
		return fmt.Errorf("failed to login to IMAP server: %w", err)
	}
	if _, err := c.Select(rw.cfg.Mailbox, false); err != nil {
		return fmt.Errorf("failed to select mailbox: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := c.Search(criteria)
	if err != nil {
		return fmt.Errorf("failed to search messages: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	handled := rw.processMessages(ctx, messages, section)
	if err := <-done; err != nil {
		return fmt.Errorf("error during fetch: %w", err)
	}

	if !handled.Empty() {
		flags := []interface{}{imap.SeenFlag}
		if err := c.Store(handled, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
			return fmt.Errorf("failed to mark messages as seen: %w", err)
		}
	}
	return nil
}

// processMessages returns every message that was handled, matched or not, so the
// next poll does not fetch it again. Messages that failed are left unseen for a retry.
func (rw *ReplyWorker) processMessages(ctx context.Context, messages <-chan *imap.Message, section *imap.BodySectionName) *imap.SeqSet {
	handled := new(imap.SeqSet)
	for msg := range messages {
		matched, err := rw.handleMessage(ctx, msg, section)
		if err != nil {
			rw.logger.WithField("seq", msg.SeqNum).WithError(err).Warn("Failed to process reply")
			continue
		}
		if !matched {
			rw.logger.WithField("seq", msg.SeqNum).Debug("Message does not match an outreach recipient")
		}
		handled.AddNum(msg.SeqNum)
	}
	return handled
}

// handleMessage reports whether the message matched an outreach recipient
func (rw *ReplyWorker) handleMessage(ctx context.Context, msg *imap.Message, section *imap.BodySectionName) (bool, error) {
	if msg.Envelope == nil || len(msg.Envelope.From) == 0 {
		return false, nil
	}
	from := msg.Envelope.From[0].Address()

	record, err := rw.history.LatestByEmail(ctx, from)
	if errors.Is(err, utils.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	text := msg.Envelope.Subject
	if literal := msg.GetBody(section); literal != nil {
		body, err := extractText(literal)
		if err != nil {
			return false, err
		}
		text += "\n" + body
	}

	status := ClassifyReply(text)
	if record.Status == models.StatusNotInterested || record.Status == status {
		return true, nil
	}
	if _, err := rw.history.UpdateStatus(ctx, record.Seq, status); err != nil {
		return false, err
	}

	utils.LogEvent("reply_detected", map[string]interface{}{
		"contact_id": record.ContactID,
		"seq":        record.Seq,
		"status":     string(status),
	})
	return true, nil
}

var optOutPhrases = []string{
	"unsubscribe",
	"not interested",
	"remove me",
	"no thanks",
	"do not contact",
	"don't contact",
	"stop",
}

// ClassifyReply maps a reply's text to the history status it implies.
// Quoted text is ignored since it usually carries our own opt-out notice.
func ClassifyReply(text string) models.OutreachStatus {
	lower := strings.ToLower(stripQuoted(text))
	for _, phrase := range optOutPhrases {
		if containsWord(lower, phrase) {
			return models.StatusNotInterested
		}
	}
	return models.StatusReplied
}

// stripQuoted drops quoted lines and everything after a reply header
func stripQuoted(text string) string {
	var kept []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-----Original Message-----") ||
			(strings.HasPrefix(trimmed, "On ") && strings.HasSuffix(trimmed, "wrote:")) {
			break
		}
		if strings.HasPrefix(trimmed, ">") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// containsWord matches phrase only on word boundaries, so "stop" does not match "stopover"
func containsWord(text, phrase string) bool {
	for offset := 0; ; {
		idx := strings.Index(text[offset:], phrase)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(phrase)
		if (start == 0 || !isWordChar(text[start-1])) && (end == len(text) || !isWordChar(text[end])) {
			return true
		}
		offset = start + 1
	}
}

func isWordChar(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func extractText(r io.Reader) (string, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to create message reader: %w", err)
	}

	var plain, html string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return "", fmt.Errorf("failed to read next part: %w", err)
		}

		if h, ok := p.Header.(*mail.InlineHeader); ok {
			contentType, _, _ := h.ContentType()
			b, err := io.ReadAll(p.Body)
			if err != nil {
				return "", fmt.Errorf("failed to read body: %w", err)
			}
			switch {
			case strings.HasPrefix(contentType, "text/plain") && plain == "":
				plain = string(b)
			case strings.HasPrefix(contentType, "text/html") && html == "":
				html = string(b)
			}
		}
	}

	if plain != "" {
		return plain, nil
	}
	return html, nil
}
