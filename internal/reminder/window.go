// Package reminder runs the weekly reminder digest job: it computes the
// reminder window, fetches pending maintenance and administrative tasks due
// inside it, renders one digest per recipient group, and dispatches them.
package reminder

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"garasiku/internal/types"
)

// The interval is an admin-maintained parameter row.
const (
	ParamGroupReminder  = "1003"
	ParamNameReminder   = "waktu-reminder"
	DefaultIntervalDays = 30
)

// ParameterSource reads one admin-maintained setting.
type ParameterSource interface {
	GetParameter(ctx context.Context, group, name string) (string, error)
}

// Window is the span of dates a digest covers. Tasks dated on or before
// Horizon are due, including overdue ones.
type Window struct {
	ReferenceDate time.Time `json:"reference_date"`
	Horizon       time.Time `json:"horizon"`
	IntervalDays  int       `json:"interval_days"`
}

// NewWindow adds days as calendar days, keeping ref's time of day.
func NewWindow(ref time.Time, days int) Window {
	return Window{
		ReferenceDate: ref,
		Horizon:       ref.AddDate(0, 0, days),
		IntervalDays:  days,
	}
}

// Includes reports whether a task with status and date belongs in the window.
func (w Window) Includes(status types.TaskStatus, date time.Time) bool {
	return types.IsDue(status, date, w.Horizon)
}

// WindowPolicy computes the reminder window and memoizes it until ClearCache.
// The zero value is not usable; use NewWindowPolicy.
type WindowPolicy struct {
	source        ParameterSource
	now           func() time.Time
	lookupTimeout time.Duration
	logger        *slog.Logger

	mu     sync.Mutex
	cached *Window
}

// WindowOption configures a WindowPolicy.
type WindowOption func(*WindowPolicy)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) WindowOption {
	return func(p *WindowPolicy) { p.now = now }
}

// WithLookupTimeout bounds the parameter lookup.
func WithLookupTimeout(d time.Duration) WindowOption {
	return func(p *WindowPolicy) { p.lookupTimeout = d }
}

// WithWindowLogger sets the logger for lookup warnings.
func WithWindowLogger(l *slog.Logger) WindowOption {
	return func(p *WindowPolicy) { p.logger = l }
}

// NewWindowPolicy creates a policy reading the interval from source. A nil
// source always yields the default interval.
func NewWindowPolicy(source ParameterSource, opts ...WindowOption) *WindowPolicy {
	p := &WindowPolicy{
		source: source,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get returns the memoized window, computing it on first use. It never fails:
// lookup problems fall back to DefaultIntervalDays.
func (p *WindowPolicy) Get(ctx context.Context) Window {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil {
		return *p.cached
	}
	w := NewWindow(p.now(), p.intervalDays(ctx))
	p.cached = &w
	return w
}

// At computes a window for an explicit reference time without touching the
// cache. Used for backfills and manual runs.
func (p *WindowPolicy) At(ctx context.Context, ref time.Time) Window {
	return NewWindow(ref, p.intervalDays(ctx))
}

// ClearCache forces the next Get to look the interval up again.
func (p *WindowPolicy) ClearCache() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

func (p *WindowPolicy) intervalDays(ctx context.Context) int {
	if p.source == nil {
		return DefaultIntervalDays
	}

	if p.lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.lookupTimeout)
		defer cancel()
	}

	raw, err := p.source.GetParameter(ctx, ParamGroupReminder, ParamNameReminder)
	if err != nil {
		msg := "reminder interval lookup failed, using default"
		if errors.Is(err, types.ErrParameterNotFound) {
			msg = "reminder interval parameter not found, using default"
		}
		p.logger.WarnContext(ctx, msg, "error", err, "default_days", DefaultIntervalDays)
		return DefaultIntervalDays
	}

	if days, ok := parseIntervalDays(raw); ok {
		return days
	}
	return DefaultIntervalDays
}

// parseIntervalDays accepts a positive base-10 integer, ignoring surrounding
// whitespace.
func parseIntervalDays(raw string) (int, bool) {
	days, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || days <= 0 {
		return 0, false
	}
	return days, true
}
