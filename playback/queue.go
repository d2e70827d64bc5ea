package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"captionkit/core"
)

// Player renders one clip and returns once it has finished playing.
type Player interface {
	Play(ctx context.Context, clip core.AudioClip) error
}

type Entry struct {
	Clip       core.AudioClip
	EnqueuedAt time.Time
}

// Queue plays clips one at a time in the order they were enqueued. Any number
// of goroutines may Enqueue; exactly one Run loop drains it.
type Queue struct {
	player Player
	logger *core.Logger

	mu      sync.Mutex
	items   *fifo[Entry]
	wake    chan struct{}
	onDepth func(int)
}

func NewQueue(player Player, logger *core.Logger) *Queue {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Queue{
		player: player,
		logger: logger.With(map[string]any{"component": "playback"}),
		items:  newFIFO[Entry](),
		wake:   make(chan struct{}, 1),
	}
}

// OnDepth registers a callback invoked with the queue length after every change.
func (q *Queue) OnDepth(fn func(int)) {
	q.mu.Lock()
	q.onDepth = fn
	q.mu.Unlock()
}

func (q *Queue) Enqueue(clip core.AudioClip) {
	q.mu.Lock()
	q.items.Enqueue(Entry{Clip: clip, EnqueuedAt: time.Now()})
	q.notifyLocked()
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Clear drops every clip that has not started playing and returns how many
// were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.items.Len()
	q.items = newFIFO[Entry]()
	q.notifyLocked()
	return n
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Run drains the queue until ctx is cancelled. A clip that fails to play is
// logged and skipped.
func (q *Queue) Run(ctx context.Context) {
	for {
		entry, ok := q.next()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		if err := q.play(ctx, entry); err != nil {
			q.logger.Warn("clip playback failed", "clip", entry.Clip.ID, "error", err)
		}
	}
}

func (q *Queue) play(ctx context.Context, entry Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("playback panicked: %v", r)
		}
	}()
	q.logger.Debug("playing clip", "clip", entry.Clip.ID, "waited", time.Since(entry.EnqueuedAt).String(), "remote", entry.Clip.Remote)
	return q.player.Play(ctx, entry.Clip)
}

func (q *Queue) next() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.items.Dequeue()
	if ok {
		q.notifyLocked()
	}
	return e, ok
}

func (q *Queue) notifyLocked() {
	if q.onDepth != nil {
		q.onDepth(q.items.Len())
	}
}
