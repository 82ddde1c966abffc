package booking

import (
	"context"
	"sync"
	"time"

	"github.com/hackgods/civil-registry-booking/internal/notify"
	"github.com/hackgods/civil-registry-booking/internal/receipt"
)

// ReceiptIssuer produces the downloadable receipt of a saved booking.
type ReceiptIssuer interface {
	IssueReceipt(ctx context.Context, rc receipt.Receipt) error
}

type ReceiptIssuerFunc func(ctx context.Context, rc receipt.Receipt) error

func (f ReceiptIssuerFunc) IssueReceipt(ctx context.Context, rc receipt.Receipt) error {
	return f(ctx, rc)
}

// Notifier shows a transient status message to the visitor.
type Notifier interface {
	Notify(ctx context.Context, severity notify.Severity, text string)
}

type NotifierFunc func(ctx context.Context, severity notify.Severity, text string)

func (f NotifierFunc) Notify(ctx context.Context, severity notify.Severity, text string) {
	f(ctx, severity, text)
}

// Confirmer gates destructive actions behind an explicit yes.
type Confirmer interface {
	Confirm(prompt string) bool
}

type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool {
	return f(prompt)
}

// Scheduler runs a continuation after the mutation that produced its data
// has completed.
type Scheduler interface {
	Schedule(fn func())
}

// ImmediateScheduler runs fn inline.
type ImmediateScheduler struct{}

func (ImmediateScheduler) Schedule(fn func()) { fn() }

// TimerScheduler delays continuations so the confirmation message renders
// before the download starts.
type TimerScheduler struct {
	delay time.Duration
	wg    sync.WaitGroup
}

func NewTimerScheduler(delay time.Duration) *TimerScheduler {
	return &TimerScheduler{delay: delay}
}

func (s *TimerScheduler) Schedule(fn func()) {
	s.wg.Add(1)
	time.AfterFunc(s.delay, func() {
		defer s.wg.Done()
		fn()
	})
}

// Wait blocks until every scheduled continuation has run.
func (s *TimerScheduler) Wait() {
	s.wg.Wait()
}
