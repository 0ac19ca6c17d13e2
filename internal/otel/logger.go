package otel

// Goroutine safety:
// The drain goroutine is the sole reader of l.ch and the sole writer to l.w.
// Logger.mu protects only the l.buf pointer (read by drain, written by SetRingBuffer).

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// writerChanSize is the capacity of the async write channel.
const writerChanSize = 4096

// queued is one emitted event. line is nil when the event is below the
// file level and only goes to the ring buffer.
type queued struct {
	line []byte
	ev   Event
}

// Logger serializes events as JSONL via an async background writer.
// Goroutine-safe. A nil *Logger is valid and discards everything, so
// components can take an optional logger without nil checks at call sites.
type Logger struct {
	mu        sync.Mutex
	buf       *RingBuffer
	sessionID string
	fileLevel Level
	ch        chan queued
	w         io.Writer
	written   atomic.Uint64
	dropped   atomic.Uint64
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Logger.
type Option func(*Logger)

// WithFileLevel sets the minimum level written to the JSONL writer. Events
// below it still reach an attached ring buffer.
func WithFileLevel(lvl Level) Option {
	return func(l *Logger) { l.fileLevel = lvl }
}

// WithSessionID replaces the random session id.
func WithSessionID(id string) Option {
	return func(l *Logger) { l.sessionID = id }
}

// NewLogger creates a Logger writing JSONL to w asynchronously.
// Call Close() to flush and stop the drain goroutine.
func NewLogger(w io.Writer, opts ...Option) *Logger {
	var sid [8]byte
	_, _ = rand.Read(sid[:])

	l := &Logger{
		sessionID: fmt.Sprintf("%x", sid[:]),
		fileLevel: LevelDebug,
		ch:        make(chan queued, writerChanSize),
		w:         w,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.drain()
	return l
}

// NewNullLogger creates a Logger that discards output.
func NewNullLogger() *Logger {
	return NewLogger(io.Discard)
}

// SessionID returns the id stamped on every event.
func (l *Logger) SessionID() string {
	if l == nil {
		return ""
	}
	return l.sessionID
}

func (l *Logger) drain() {
	defer close(l.done)
	for q := range l.ch {
		if q.line != nil {
			if _, err := l.w.Write(q.line); err != nil {
				l.dropped.Add(1)
			} else {
				l.written.Add(1)
			}
		}

		l.mu.Lock()
		rb := l.buf
		l.mu.Unlock()

		if rb != nil {
			rb.Push(q.ev)
		}
	}
}

func levelRank(lvl Level) int {
	switch lvl {
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	}
	return 0
}

// Emit queues an event, stamping Time (if zero) and SessionID. It never
// blocks: when the channel is full or the logger is closed the event is
// dropped and counted.
func (l *Logger) Emit(e Event) {
	if l == nil {
		return
	}
	// Close may win the race between the closed check and the send.
	defer func() {
		if recover() != nil {
			l.dropped.Add(1)
		}
	}()

	if l.closed.Load() {
		l.dropped.Add(1)
		return
	}

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.SessionID = l.sessionID

	var line []byte
	if levelRank(e.Level) >= levelRank(l.fileLevel) {
		data, err := json.Marshal(e)
		if err != nil {
			l.dropped.Add(1)
			return
		}
		line = append(data, '\n')
	}

	select {
	case l.ch <- queued{line: line, ev: e}:
	default:
		l.dropped.Add(1)
	}
}

// Info emits an info-level event.
func (l *Logger) Info(kind EventKind, comp string, msg string) {
	l.Emit(Event{Level: LevelInfo, Kind: kind, Comp: comp, Msg: msg})
}

// Warn emits a warn-level event.
func (l *Logger) Warn(kind EventKind, comp string, msg string) {
	l.Emit(Event{Level: LevelWarn, Kind: kind, Comp: comp, Msg: msg})
}

// Error emits an error-level event. Nil err is logged as an empty string.
func (l *Logger) Error(kind EventKind, comp string, err error) {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	l.Emit(Event{Level: LevelError, Kind: kind, Comp: comp, Err: errStr})
}

// SetRingBuffer attaches a ring buffer for the debug overlay.
func (l *Logger) SetRingBuffer(buf *RingBuffer) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = buf
}

// Written returns the number of lines written to the JSONL writer.
func (l *Logger) Written() uint64 {
	if l == nil {
		return 0
	}
	return l.written.Load()
}

// Dropped returns the number of events dropped since creation.
func (l *Logger) Dropped() uint64 {
	if l == nil {
		return 0
	}
	return l.dropped.Load()
}

// Close flushes pending events and stops the drain goroutine. Idempotent.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.ch)
		<-l.done

		if d := l.dropped.Load(); d > 0 {
			fmt.Fprintf(os.Stderr, "newsdesk: %d events dropped during session %s\n", d, l.sessionID)
		}
	})
}
