package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"coldcall-platform/internal/compliance"
	"coldcall-platform/internal/contact"
	"coldcall-platform/internal/conversation"
	"coldcall-platform/internal/prompt"
	"coldcall-platform/internal/telephony"
)

/* ---------- stubs ---------- */

type memLedger struct {
	mu       sync.Mutex
	contacts map[string]*contact.Contact
}

func newMemLedger(cs ...contact.Contact) *memLedger {
	m := &memLedger{contacts: make(map[string]*contact.Contact)}
	for _, c := range cs {
		cc := c
		m.contacts[c.PhoneNumber] = &cc
	}
	return m
}

func (m *memLedger) Load(ctx context.Context) ([]contact.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]contact.Contact, 0, len(m.contacts))
	for _, c := range m.contacts {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memLedger) Save(ctx context.Context, cs []contact.Contact) error { return nil }

func (m *memLedger) UpdateStatus(ctx context.Context, phone string, status contact.CallStatus, inc bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[phone]
	if !ok {
		return errors.New("not found")
	}
	c.Status = status
	if inc {
		c.CallAttempts++
	}
	return nil
}

func (m *memLedger) get(phone string) contact.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.contacts[phone]
}

type fakeDialer struct {
	err       error
	onDial    func(req telephony.CallRequest)
	inFlight  atomic.Int64
	maxSeen   atomic.Int64
	holdOpenD time.Duration
}

func (d *fakeDialer) PlaceCall(ctx context.Context, req telephony.CallRequest) (telephony.CallRef, error) {
	cur := d.inFlight.Add(1)
	for {
		max := d.maxSeen.Load()
		if cur <= max || d.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}
	if d.holdOpenD > 0 {
		time.Sleep(d.holdOpenD)
	}
	d.inFlight.Add(-1)
	if d.err != nil {
		return telephony.CallRef{}, d.err
	}
	if d.onDial != nil {
		d.onDial(req)
	}
	return telephony.CallRef{SID: "CA" + req.To, Status: "queued"}, nil
}

type captureSink struct {
	mu        sync.Mutex
	summaries []conversation.Summary
}

func (s *captureSink) Append(sum conversation.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, sum)
	return nil
}

type stubGen struct{}

func (stubGen) Generate(ctx context.Context, p string, n int, t float64) (string, error) {
	return "hello from the assistant", nil
}

type denyCap struct{}

func (denyCap) TryAcquire(ctx context.Context) (bool, error) { return false, nil }
func (denyCap) Release(ctx context.Context) error            { return nil }

/* ---------- helpers ---------- */

func testEngine(t *testing.T) *conversation.Engine {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "default.txt"), []byte("Talk to {{.Name}}."), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := prompt.NewStore(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	return conversation.NewEngine(store, stubGen{}, nil)
}

func openGate(t *testing.T) *compliance.Gate {
	t.Helper()
	g, err := compliance.NewGate(compliance.DNCSet{}, "UTC", 0, 23, nil)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func pendingContact(phone string) contact.Contact {
	return contact.Contact{
		PhoneNumber:     phone,
		Name:            "Contact " + phone,
		Status:          contact.StatusPending,
		ConsentObtained: true,
		PromptName:      "default",
	}
}

func newOrch(t *testing.T, l *memLedger, d telephony.Dialer, sink SummarySink, cap SessionCap, opts Options) *Orchestrator {
	t.Helper()
	if sink == nil {
		sink = &captureSink{}
	}
	opts.FromNumber = "+15550000000"
	opts.PublicBaseURL = "https://dialer.example.com"
	return New(l, openGate(t), testEngine(t), d, sink, cap, opts, nil)
}

/* ---------- tests ---------- */

func TestMakeCall_CompletesAndSettlesLedger(t *testing.T) {
	l := newMemLedger(pendingContact("+15551234567"))
	sink := &captureSink{}
	o := newOrch(t, l, &fakeDialer{}, sink, nil, Options{MaxConcurrentCalls: 3})

	res := o.MakeCall(context.Background(), l.get("+15551234567"))
	if res.Status != ResultSuccess {
		t.Fatalf("expected success, got %+v", res)
	}

	c := l.get("+15551234567")
	if c.Status != contact.StatusCompleted {
		t.Fatalf("expected completed, got %s", c.Status)
	}
	if c.CallAttempts != 1 {
		t.Fatalf("expected attempt count 1, got %d", c.CallAttempts)
	}
	if len(sink.summaries) != 1 || sink.summaries[0].TurnCount == 0 {
		t.Fatalf("expected one summary with turns, got %+v", sink.summaries)
	}
	if !strings.HasPrefix(res.CallID, "call_+15551234567_") {
		t.Fatalf("unexpected call id %q", res.CallID)
	}
}

func TestMakeCall_OptOutDuringCall(t *testing.T) {
	l := newMemLedger(pendingContact("+15551234567"))
	sink := &captureSink{}

	var o *Orchestrator
	d := &fakeDialer{}
	d.onDial = func(req telephony.CallRequest) {
		// Simulate the webhook feeding callee speech into the engine.
		callID := req.CallbackURL[strings.LastIndex(req.CallbackURL, "/")+1:]
		if _, ok := o.engine.ProcessInput(context.Background(), callID, "take me off your list"); !ok {
			t.Errorf("engine did not accept input for %s", callID)
		}
	}
	o = newOrch(t, l, d, sink, nil, Options{MaxConcurrentCalls: 3, DialGrace: 10 * time.Millisecond})

	res := o.MakeCall(context.Background(), l.get("+15551234567"))
	if res.Status != ResultSuccess || !res.OptOut {
		t.Fatalf("expected opt-out success, got %+v", res)
	}
	if got := l.get("+15551234567").Status; got != contact.StatusOptedOut {
		t.Fatalf("expected opted_out, got %s", got)
	}
	if len(sink.summaries) != 1 || !sink.summaries[0].OptOutRequested {
		t.Fatalf("expected opt-out summary, got %+v", sink.summaries)
	}
}

func TestMakeCall_DialFailureMarksFailed(t *testing.T) {
	l := newMemLedger(pendingContact("+15551234567"))
	o := newOrch(t, l, &fakeDialer{err: errors.New("carrier rejected")}, nil, nil, Options{MaxConcurrentCalls: 3})

	res := o.MakeCall(context.Background(), l.get("+15551234567"))
	if res.Status != ResultFailed || res.Err == "" {
		t.Fatalf("expected failed result, got %+v", res)
	}
	c := l.get("+15551234567")
	if c.Status != contact.StatusFailed {
		t.Fatalf("expected failed, got %s", c.Status)
	}
	if c.Status == contact.StatusCalling {
		t.Fatalf("contact left at calling")
	}
}

func TestMakeCall_NotCallableIsBlockedWithoutLedgerWrites(t *testing.T) {
	c := pendingContact("+15551234567")
	c.ConsentObtained = false
	l := newMemLedger(c)
	o := newOrch(t, l, &fakeDialer{}, nil, nil, Options{MaxConcurrentCalls: 3})

	res := o.MakeCall(context.Background(), l.get("+15551234567"))
	if res.Status != ResultBlocked {
		t.Fatalf("expected blocked, got %+v", res)
	}
	after := l.get("+15551234567")
	if after.Status != contact.StatusPending || after.CallAttempts != 0 {
		t.Fatalf("ledger mutated for blocked contact: %+v", after)
	}
}

func TestMakeCall_GlobalCapBlocks(t *testing.T) {
	l := newMemLedger(pendingContact("+15551234567"))
	o := newOrch(t, l, &fakeDialer{}, nil, denyCap{}, Options{MaxConcurrentCalls: 3})

	res := o.MakeCall(context.Background(), l.get("+15551234567"))
	if res.Status != ResultBlocked {
		t.Fatalf("expected blocked by global cap, got %+v", res)
	}
}

func TestPermitPool_NeverOversubscribed(t *testing.T) {
	const contacts = 10
	const limit = 3

	var cs []contact.Contact
	for i := 0; i < contacts; i++ {
		cs = append(cs, pendingContact("+1555000"+string(rune('0'+i))+"000"))
	}
	l := newMemLedger(cs...)
	d := &fakeDialer{holdOpenD: 20 * time.Millisecond}
	o := newOrch(t, l, d, nil, nil, Options{MaxConcurrentCalls: limit})

	var wg sync.WaitGroup
	for _, c := range cs {
		wg.Add(1)
		go func(c contact.Contact) {
			defer wg.Done()
			o.MakeCall(context.Background(), c)
		}(c)
	}
	wg.Wait()

	if max := d.maxSeen.Load(); max > limit {
		t.Fatalf("permit pool oversubscribed: %d concurrent calls, limit %d", max, limit)
	}
}

func TestRunSession_TruncatesAndTallies(t *testing.T) {
	var cs []contact.Contact
	for _, p := range []string{"+15551111111", "+15552222222", "+15553333333", "+15554444444", "+15555555555"} {
		cs = append(cs, pendingContact(p))
	}
	// One contact is already completed and must not be redialed.
	cs[4].Status = contact.StatusCompleted

	l := newMemLedger(cs...)
	o := newOrch(t, l, &fakeDialer{}, nil, nil, Options{MaxConcurrentCalls: 3})

	stats, err := o.RunSession(context.Background())
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if stats.Dispatched != 3 {
		t.Fatalf("expected dispatch truncated to 3, got %d", stats.Dispatched)
	}
	if stats.Successful != 3 || stats.OptOuts != 0 {
		t.Fatalf("unexpected tally %+v", stats)
	}

	var completed, pending int
	all, _ := l.Load(context.Background())
	for _, c := range all {
		switch c.Status {
		case contact.StatusCalling:
			t.Fatalf("contact %s left at calling", c.PhoneNumber)
		case contact.StatusCompleted:
			completed++
		case contact.StatusPending:
			pending++
		}
	}
	if completed != 4 || pending != 1 { // 3 dialed + 1 pre-completed
		t.Fatalf("unexpected ledger state: completed=%d pending=%d", completed, pending)
	}
}

func TestRun_WarnsAboutUnresolvedPromptAssignments(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	c := pendingContact("+15551234567")
	c.PromptName = "missing_persona"
	l := newMemLedger(c)

	o := New(l, openGate(t), testEngine(t), &fakeDialer{}, &captureSink{}, nil, Options{
		MaxConcurrentCalls: 1,
		FromNumber:         "+15550000000",
		PublicBaseURL:      "https://dialer.example.com",
	}, log)

	// Cancelled context: the audit still runs, the loop exits immediately.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := o.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "missing_persona") {
		t.Fatalf("expected prompt assignment warning, got logs:\n%s", out)
	}
	if !strings.Contains(out, "+15551234567") {
		t.Fatalf("expected warning to name the contact, got logs:\n%s", out)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	l := newMemLedger()
	o := newOrch(t, l, &fakeDialer{}, nil, nil, Options{
		MaxConcurrentCalls: 1,
		PollInterval:       5 * time.Millisecond,
		IdleInterval:       5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("run did not stop on cancel")
	}
}
