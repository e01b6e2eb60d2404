// Package orchestrator schedules outbound calls: it discovers callable
// contacts, bounds how many calls run at once, and drives each attempt
// through dial, conversation, logging and ledger updates.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"coldcall-platform/internal/compliance"
	"coldcall-platform/internal/contact"
	"coldcall-platform/internal/conversation"
	"coldcall-platform/internal/ledger"
	"coldcall-platform/internal/telephony"
)

// SummarySink receives finished-call summaries (the JSONL conversation log).
type SummarySink interface {
	Append(summary conversation.Summary) error
}

// SessionCap is an optional cross-process limit on simultaneously open
// calls, on top of the in-process permit pool.
type SessionCap interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type Options struct {
	FromNumber    string
	PublicBaseURL string

	MaxConcurrentCalls int
	CallTimeout        time.Duration

	// DialGrace is how long a call attempt stays open after dialing before
	// the conversation is summarized. The webhook loop feeds turns in
	// during this window.
	DialGrace time.Duration

	// PollInterval separates sessions inside calling hours; IdleInterval
	// applies outside them.
	PollInterval time.Duration
	IdleInterval time.Duration
}

func (o Options) withDefaults() Options {
	out := o
	if out.MaxConcurrentCalls <= 0 {
		out.MaxConcurrentCalls = 3
	}
	if out.CallTimeout <= 0 {
		out.CallTimeout = 120 * time.Second
	}
	if out.DialGrace < 0 {
		out.DialGrace = 0
	}
	if out.PollInterval <= 0 {
		out.PollInterval = 5 * time.Minute
	}
	if out.IdleInterval <= 0 {
		out.IdleInterval = time.Hour
	}
	return out
}

type Orchestrator struct {
	ledger  ledger.Ledger
	gate    *compliance.Gate
	engine  *conversation.Engine
	dialer  telephony.Dialer
	convLog SummarySink
	cap     SessionCap // nil when no global cap is configured
	log     *slog.Logger

	sem  *semaphore.Weighted
	opts Options
	now  func() time.Time
}

func New(l ledger.Ledger, gate *compliance.Gate, engine *conversation.Engine, dialer telephony.Dialer, convLog SummarySink, cap SessionCap, opts Options, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	opts = opts.withDefaults()
	return &Orchestrator{
		ledger:  l,
		gate:    gate,
		engine:  engine,
		dialer:  dialer,
		convLog: convLog,
		cap:     cap,
		log:     log,
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrentCalls)),
		opts:    opts,
		now:     time.Now,
	}
}

type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultBlocked ResultStatus = "blocked"
	ResultFailed  ResultStatus = "failed"
)

// Result is the per-contact outcome of one call attempt.
type Result struct {
	Status  ResultStatus
	Phone   string
	CallID  string
	CallSID string
	OptOut  bool
	Err     string
}

// SessionStats tallies one batch after every dispatched task resolves.
type SessionStats struct {
	Dispatched int
	Successful int
	OptOuts    int
}

// RunSession runs one calling batch: pending contacts, compliance filter,
// truncate to the concurrency bound, dispatch, wait for all. A failing
// contact never aborts the batch.
func (o *Orchestrator) RunSession(ctx context.Context) (SessionStats, error) {
	contacts, err := o.ledger.Load(ctx)
	if err != nil {
		return SessionStats{}, fmt.Errorf("orchestrator: load contacts: %w", err)
	}

	now := o.now()
	var callable []contact.Contact
	for _, c := range contacts {
		if c.Status != contact.StatusPending {
			continue
		}
		if !o.gate.IsCallable(c, now) {
			continue
		}
		callable = append(callable, c)
		if len(callable) == o.opts.MaxConcurrentCalls {
			break
		}
	}
	if len(callable) == 0 {
		o.log.Info("no callable contacts")
		return SessionStats{}, nil
	}

	o.log.Info("calling contacts", "count", len(callable))
	results := make([]Result, len(callable))
	var wg sync.WaitGroup
	for i, c := range callable {
		wg.Add(1)
		go func(i int, c contact.Contact) {
			defer wg.Done()
			results[i] = o.MakeCall(ctx, c)
		}(i, c)
	}
	wg.Wait()

	stats := SessionStats{Dispatched: len(results)}
	for _, r := range results {
		if r.Status == ResultSuccess {
			stats.Successful++
		}
		if r.OptOut {
			stats.OptOuts++
		}
	}
	o.log.Info("session complete",
		"successful", stats.Successful, "dispatched", stats.Dispatched, "opt_outs", stats.OptOuts)
	return stats, nil
}

// MakeCall drives one attempt end to end while holding a concurrency
// permit. Every error is converted into a FAILED ledger transition and a
// failed result; nothing propagates.
func (o *Orchestrator) MakeCall(ctx context.Context, c contact.Contact) Result {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return Result{Status: ResultFailed, Phone: c.PhoneNumber, Err: err.Error()}
	}
	defer o.sem.Release(1)

	if o.cap != nil {
		ok, err := o.cap.TryAcquire(ctx)
		if err != nil {
			o.log.Warn("global call cap unavailable", "err", err)
		} else if !ok {
			o.log.Info("global call cap reached", "phone", c.PhoneNumber)
			return Result{Status: ResultBlocked, Phone: c.PhoneNumber}
		} else {
			defer func() {
				if err := o.cap.Release(ctx); err != nil {
					o.log.Warn("global call cap release failed", "err", err)
				}
			}()
		}
	}

	now := o.now()
	callID := fmt.Sprintf("call_%s_%s_%s", c.PhoneNumber, now.Format("20060102_150405"), uuid.NewString()[:8])

	// Re-check: the batch filter ran earlier and conditions may have moved.
	if !o.gate.IsCallable(c, now) {
		return Result{Status: ResultBlocked, Phone: c.PhoneNumber}
	}

	if err := o.ledger.UpdateStatus(ctx, c.PhoneNumber, contact.StatusCalling, true); err != nil {
		return o.fail(ctx, c, callID, fmt.Errorf("mark calling: %w", err))
	}

	o.engine.Start(ctx, c, callID)

	ref, err := o.dialer.PlaceCall(ctx, telephony.CallRequest{
		To:          c.PhoneNumber,
		From:        o.opts.FromNumber,
		CallbackURL: fmt.Sprintf("%s/twiml/%s", o.opts.PublicBaseURL, callID),
		Timeout:     o.opts.CallTimeout,
	})
	if err != nil {
		o.engine.End(callID)
		return o.fail(ctx, c, callID, fmt.Errorf("place call: %w", err))
	}
	o.log.Info("call initiated", "phone", c.PhoneNumber, "call_sid", ref.SID, "prompt", c.PromptName)

	if err := o.sleep(ctx, o.opts.DialGrace); err != nil {
		// Shutdown mid-call: still summarize and settle the ledger.
		o.log.Info("call window cut short by shutdown", "call_id", callID)
	}

	var optOut bool
	if summary, ok := o.engine.End(callID); ok {
		optOut = summary.OptOutRequested
		if err := o.convLog.Append(summary); err != nil {
			o.log.Error("conversation log append failed", "call_id", callID, "err", err)
		}
	}

	final := contact.StatusCompleted
	if optOut {
		final = contact.StatusOptedOut
	}
	if err := o.ledger.UpdateStatus(ctx, c.PhoneNumber, final, false); err != nil {
		return o.fail(ctx, c, callID, fmt.Errorf("mark %s: %w", final, err))
	}

	return Result{
		Status:  ResultSuccess,
		Phone:   c.PhoneNumber,
		CallID:  callID,
		CallSID: ref.SID,
		OptOut:  optOut,
	}
}

func (o *Orchestrator) fail(ctx context.Context, c contact.Contact, callID string, cause error) Result {
	o.log.Error("call failed", "phone", c.PhoneNumber, "call_id", callID, "err", cause)
	if err := o.ledger.UpdateStatus(ctx, c.PhoneNumber, contact.StatusFailed, false); err != nil {
		o.log.Error("failed-status update failed", "phone", c.PhoneNumber, "err", err)
	}
	return Result{Status: ResultFailed, Phone: c.PhoneNumber, CallID: callID, Err: cause.Error()}
}

// auditPromptAssignments warns about contacts whose prompt_name resolves
// to no loaded template. Those contacts fall back to the default template;
// this never blocks calling.
func (o *Orchestrator) auditPromptAssignments(ctx context.Context) {
	contacts, err := o.ledger.Load(ctx)
	if err != nil {
		o.log.Warn("prompt assignment audit skipped", "err", err)
		return
	}
	for _, w := range o.engine.ValidatePromptAssignments(contacts) {
		o.log.Warn("contact prompt not found, default will be used", "contact", w)
	}
}

// Run is the outer polling loop: sessions while calling hours are active,
// long sleeps outside them. Returns when ctx is cancelled; in-flight calls
// finish their current attempt.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.auditPromptAssignments(ctx)
	o.log.Info("calling loop started",
		"max_concurrent", o.opts.MaxConcurrentCalls,
		"poll_interval", o.opts.PollInterval,
		"idle_interval", o.opts.IdleInterval)

	for {
		if err := ctx.Err(); err != nil {
			o.log.Info("calling loop stopped")
			return nil
		}
		if o.gate.WithinCallingHours(o.now()) {
			if _, err := o.RunSession(ctx); err != nil {
				o.log.Error("session failed", "err", err)
			}
			if err := o.sleep(ctx, o.opts.PollInterval); err != nil {
				o.log.Info("calling loop stopped")
				return nil
			}
		} else {
			o.log.Info("outside calling hours")
			if err := o.sleep(ctx, o.opts.IdleInterval); err != nil {
				o.log.Info("calling loop stopped")
				return nil
			}
		}
	}
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
