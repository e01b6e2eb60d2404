package compliance

import (
	"fmt"
	"log/slog"
	"time"

	"coldcall-platform/internal/contact"
)

// Gate decides whether a call attempt may be placed. It is a pure predicate
// over (contact, dnc set, now); it never mutates anything.
type Gate struct {
	dnc       DNCSet
	loc       *time.Location
	startHour int
	endHour   int
	log       *slog.Logger
}

// NewGate builds a gate for the given timezone and inclusive daily calling
// window [startHour:00, endHour:00].
func NewGate(dnc DNCSet, timezone string, startHour, endHour int, log *slog.Logger) (*Gate, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("compliance: timezone %q: %w", timezone, err)
	}
	if startHour < 0 || startHour > 23 || endHour < 0 || endHour > 23 || endHour < startHour {
		return nil, fmt.Errorf("compliance: invalid calling hours %d-%d", startHour, endHour)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gate{dnc: dnc, loc: loc, startHour: startHour, endHour: endHour, log: log}, nil
}

// IsCallable applies the compliance rules in order: consent, opt-out,
// do-not-call membership, calling hours. First failure wins.
func (g *Gate) IsCallable(c contact.Contact, now time.Time) bool {
	if !c.ConsentObtained {
		g.log.Debug("not callable: no consent", "phone", c.PhoneNumber)
		return false
	}
	if c.OptOutDate != "" {
		g.log.Debug("not callable: opted out", "phone", c.PhoneNumber, "opt_out_date", c.OptOutDate)
		return false
	}
	if g.dnc.Contains(contact.NormalizePhone(c.PhoneNumber)) {
		g.log.Info("not callable: on dnc list", "phone", c.PhoneNumber)
		return false
	}
	return g.WithinCallingHours(now)
}

// WithinCallingHours reports whether now, in the gate's timezone, lies in
// the window. Both bounds are inclusive: a call at exactly endHour:00:00 is
// still allowed.
func (g *Gate) WithinCallingHours(now time.Time) bool {
	h, m, s := now.In(g.loc).Clock()
	secs := h*3600 + m*60 + s
	return secs >= g.startHour*3600 && secs <= g.endHour*3600
}
