package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"equireach/models"
	"equireach/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrDispatchActive = errors.New("a dispatch run is already active")

// Transmitter delivers one outbound message
type Transmitter interface {
	Send(ctx context.Context, msg models.OutboundMessage) error
}

// HistoryWriter persists dispatch outcomes
type HistoryWriter interface {
	Append(ctx context.Context, record *models.OutreachRecord) error
}

type DispatchConfig struct {
	SenderLabel          string
	CampaignLabel        string
	InterMessageDelay    time.Duration
	PersonalizationDelay time.Duration
}

// RunRequest is the input of one dispatch run. Targets are copied when the run starts.
type RunRequest struct {
	Owner      string
	Targets    []models.Contact
	Template   string
	OnComplete func(summary models.DispatchSummary)
}

// DispatchEngine sends outreach messages strictly one at a time with a fixed
// cooldown between sends. At most one run is active at any moment.
type DispatchEngine struct {
	mailer   Transmitter
	history  HistoryWriter
	renderer *utils.MessageRenderer
	cfg      DispatchConfig
	logger   *logrus.Entry

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu          sync.Mutex
	progress    models.DispatchProgress
	cancel      context.CancelFunc
	done        chan struct{}
	subscribers map[int]chan models.DispatchProgress
	nextSub     int
}

func NewDispatchEngine(mailer Transmitter, history HistoryWriter, renderer *utils.MessageRenderer, cfg DispatchConfig, logger *logrus.Entry) *DispatchEngine {
	return &DispatchEngine{
		mailer:      mailer,
		history:     history,
		renderer:    renderer,
		cfg:         cfg,
		logger:      logger,
		sleep:       sleepContext,
		now:         time.Now,
		progress:    models.DispatchProgress{State: models.DispatchIdle, Phase: "idle"},
		subscribers: make(map[int]chan models.DispatchProgress),
	}
}

// Start begins a run in the background and returns its id
func (e *DispatchEngine) Start(ctx context.Context, req RunRequest) (string, error) {
	runCtx, targets, err := e.begin(ctx, req)
	if err != nil {
		return "", err
	}
	runID := e.Status().RunID
	go e.loop(runCtx, targets, req)
	return runID, nil
}

// Run executes a run synchronously and returns its summary
func (e *DispatchEngine) Run(ctx context.Context, req RunRequest) (models.DispatchSummary, error) {
	runCtx, targets, err := e.begin(ctx, req)
	if err != nil {
		return models.DispatchSummary{}, err
	}
	return e.loop(runCtx, targets, req), nil
}

// Cancel requests the active run to stop; it takes effect within one iteration.
// It reports whether a run was active.
func (e *DispatchEngine) Cancel() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelLocked()
}

// CancelFor cancels the active run only when it was started by owner
func (e *DispatchEngine) CancelFor(owner string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.progress.Owner != owner {
		return false
	}
	return e.cancelLocked()
}

func (e *DispatchEngine) cancelLocked() bool {
	if e.progress.State != models.DispatchRunning || e.cancel == nil {
		return false
	}
	e.cancel()
	return true
}

// Wait blocks until the active run, if any, has finished
func (e *DispatchEngine) Wait() {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Status returns the current progress snapshot
func (e *DispatchEngine) Status() models.DispatchProgress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress
}

// Subscribe streams progress snapshots in the order they are produced.
// Slow subscribers miss snapshots rather than blocking the run.
func (e *DispatchEngine) Subscribe() (<-chan models.DispatchProgress, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSub
	e.nextSub++
	ch := make(chan models.DispatchProgress, 64)
	ch <- e.progress
	e.subscribers[id] = ch

	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subscribers[id]; ok {
			delete(e.subscribers, id)
			close(sub)
		}
	}
}

func (e *DispatchEngine) begin(ctx context.Context, req RunRequest) (context.Context, []models.Contact, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.progress.State == models.DispatchRunning {
		return nil, nil, ErrDispatchActive
	}

	targets := append([]models.Contact(nil), req.Targets...)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.done = make(chan struct{})
	e.progress = models.DispatchProgress{
		RunID:     uuid.New().String(),
		Owner:     req.Owner,
		State:     models.DispatchRunning,
		Phase:     "initializing",
		Total:     len(targets),
		StartedAt: utils.Pointer(e.now()),
	}
	e.publishLocked()

	// the caller's ctx cancels the run as well
	go func(done chan struct{}) {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}(e.done)

	return runCtx, targets, nil
}

func (e *DispatchEngine) loop(ctx context.Context, targets []models.Contact, req RunRequest) models.DispatchSummary {
	runID := e.Status().RunID
	log := e.logger.WithField("run_id", runID)
	log.WithField("targets", len(targets)).Info("Dispatch run started")

	for i, target := range targets {
		if ctx.Err() != nil {
			return e.finish(models.DispatchAborted, req, log)
		}

		e.update(func(p *models.DispatchProgress) {
			p.Cursor = i
			p.Phase = "personalizing for " + target.DisplayName
		})
		if e.cfg.PersonalizationDelay > 0 {
			if err := e.sleep(ctx, e.cfg.PersonalizationDelay); err != nil {
				return e.finish(models.DispatchAborted, req, log)
			}
		}
		body := e.renderer.Render(req.Template, target)

		e.update(func(p *models.DispatchProgress) {
			p.Phase = "transmitting to " + target.DisplayName
		})
		msg := models.OutboundMessage{
			SenderLabel:      e.cfg.SenderLabel,
			RecipientName:    target.DisplayName,
			RecipientAddress: target.Email,
			Subject:          utils.Subject(e.cfg.CampaignLabel, target),
			Body:             body,
		}
		sendErr := e.transmit(context.WithoutCancel(ctx), msg)

		record := &models.OutreachRecord{
			ContactID: target.ID,
			Name:      target.DisplayName,
			Email:     target.Email,
			Status:    models.StatusSent,
			Date:      e.now(),
			RunID:     runID,
		}
		if sendErr != nil {
			record.Status = models.StatusFailed
			record.Detail = sendErr.Error()
			log.WithFields(logrus.Fields{
				"contact_id": target.ID,
				"error":      sendErr.Error(),
			}).Warn("Transmission failed, continuing with next contact")
		}
		if err := e.history.Append(context.WithoutCancel(ctx), record); err != nil {
			utils.LogError("dispatch_history_append", err, map[string]interface{}{
				"run_id":     runID,
				"contact_id": target.ID,
			})
		}

		e.update(func(p *models.DispatchProgress) {
			p.LastCompletedName = target.DisplayName
			if sendErr != nil {
				p.Failed++
			} else {
				p.Sent++
			}
		})

		if i < len(targets)-1 {
			if ctx.Err() != nil {
				return e.finish(models.DispatchAborted, req, log)
			}
			e.update(func(p *models.DispatchProgress) {
				p.Phase = fmt.Sprintf("cooling down (%s)", e.cfg.InterMessageDelay)
			})
			if err := e.sleep(ctx, e.cfg.InterMessageDelay); err != nil {
				return e.finish(models.DispatchAborted, req, log)
			}
		}
	}

	return e.finish(models.DispatchCompleted, req, log)
}

// transmit makes the single send attempt; a panicking transmitter counts as a failure
func (e *DispatchEngine) transmit(ctx context.Context, msg models.OutboundMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transmitter panic: %v", r)
		}
	}()
	return e.mailer.Send(ctx, msg)
}

func (e *DispatchEngine) finish(state models.DispatchState, req RunRequest, log *logrus.Entry) models.DispatchSummary {
	e.mu.Lock()
	finished := e.now()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	p := e.progress
	summary := models.DispatchSummary{
		RunID:  p.RunID,
		State:  state,
		Total:  p.Total,
		Sent:   p.Sent,
		Failed: p.Failed,
	}
	if p.StartedAt != nil {
		summary.Elapsed = finished.Sub(*p.StartedAt)
	}
	if state == models.DispatchCompleted && req.OnComplete != nil {
		e.progress.Phase = "finalizing"
		e.publishLocked()
	}
	e.mu.Unlock()

	// the run stays active until the completion hook returns, so no new run
	// can observe the pre-hook selection
	if state == models.DispatchCompleted && req.OnComplete != nil {
		req.OnComplete(summary)
	}

	e.mu.Lock()
	e.progress.State = state
	e.progress.FinishedAt = &finished
	if state == models.DispatchCompleted {
		e.progress.Cursor = e.progress.Total
		e.progress.Phase = "complete"
	} else {
		e.progress.Phase = "aborted"
	}
	e.publishLocked()
	done := e.done
	e.mu.Unlock()

	utils.LogEvent("dispatch_"+string(state), map[string]interface{}{
		"run_id": summary.RunID,
		"total":  summary.Total,
		"sent":   summary.Sent,
		"failed": summary.Failed,
	})
	log.WithField("elapsed", utils.FormatDuration(summary.Elapsed)).Info("Dispatch run finished")

	close(done)
	return summary
}

func (e *DispatchEngine) update(fn func(p *models.DispatchProgress)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.progress)
	e.publishLocked()
}

func (e *DispatchEngine) publishLocked() {
	for _, ch := range e.subscribers {
		select {
		case ch <- e.progress:
		default:
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
