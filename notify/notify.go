// Package notify delivers operator messages and journals closed trades off
// the engine's hot path.
package notify

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/breakout/journal"
)

const (
	DefaultBuffer = 64
	drainTimeout  = 5 * time.Second
	stampLayout   = "2006-01-02 15:04:05"
)

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, text string) error
}

type job struct {
	text  string
	trade *journal.TradeRecord
}

// Dispatcher queues messages and trade records and hands them to a Sender
// and a Journal from its own goroutine. Notify and RecordTrade never block;
// when the queue is full the item is dropped and counted.
type Dispatcher struct {
	sender  Sender
	journal journal.Journal
	log     zerolog.Logger
	now     func() time.Time
	queue   chan job
	dropped atomic.Int64
}

type Option func(*Dispatcher)

func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithBuffer(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan job, n)
		}
	}
}

// NewDispatcher builds a dispatcher. Either sender or j may be nil.
func NewDispatcher(sender Sender, j journal.Journal, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender:  sender,
		journal: j,
		log:     zerolog.Nop(),
		now:     time.Now,
		queue:   make(chan job, DefaultBuffer),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Notify queues text prefixed with the current time.
func (d *Dispatcher) Notify(text string) {
	if d.sender == nil {
		return
	}
	d.enqueue(job{text: "[" + d.now().Format(stampLayout) + "] " + text})
}

func (d *Dispatcher) RecordTrade(t journal.TradeRecord) {
	if d.journal == nil {
		return
	}
	d.enqueue(job{trade: &t})
}

func (d *Dispatcher) enqueue(j job) {
	select {
	case d.queue <- j:
	default:
		n := d.dropped.Add(1)
		d.log.Warn().Int64("dropped", n).Msg("notify queue full")
	}
}

// Dropped reports how many items were discarded because the queue was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Run delivers queued items until ctx is cancelled, then drains whatever is
// still queued with a short deadline.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return nil
		case j := <-d.queue:
			d.deliver(ctx, j)
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case j := <-d.queue:
			d.deliver(ctx, j)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, j job) {
	if j.trade != nil {
		if err := d.journal.RecordTrade(*j.trade); err != nil {
			d.log.Error().Err(err).Str("trade", j.trade.TradeID).Msg("journal write failed")
		}
		return
	}
	if err := d.sender.Send(ctx, j.text); err != nil {
		d.log.Error().Err(err).Msg("notification failed")
	}
}
