// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bureau-foundation/tether/lib/clock"
)

// sessionKiller is what the reaper kills expired sessions through.
// Registry implements it.
type sessionKiller interface {
	// KillExpired kills name only while it still refers to owner. A
	// nil owner matches whatever session holds the name.
	KillExpired(name string, owner *Session) error
}

// reapable is one scheduled deadline.
type reapable struct {
	name       string
	owner      *Session
	generation uint64
	reapAt     time.Time
}

// reapQueue is a min-heap of reapables ordered by reapAt.
type reapQueue []reapable

func (q reapQueue) Len() int           { return len(q) }
func (q reapQueue) Less(i, j int) bool { return q[i].reapAt.Before(q[j].reapAt) }
func (q reapQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *reapQueue) Push(x any)        { *q = append(*q, x.(reapable)) }
func (q *reapQueue) Pop() any {
	old := *q
	item := old[len(old)-1]
	*q = old[:len(old)-1]
	return item
}

type scheduleRequest struct {
	name   string
	owner  *Session
	reapAt time.Time
}

// Reaper kills sessions whose TTL has expired.
//
// All state is owned by the Run goroutine. Schedule hands requests
// over an unbuffered channel, so once Schedule returns the request is
// guaranteed to be applied before any further deadline is examined.
type Reaper struct {
	target   sessionKiller
	clock    clock.Clock
	logger   *slog.Logger
	schedule chan scheduleRequest
	stopped  chan struct{}
}

// NewReaper returns a reaper that kills through target. Call Run to
// start it.
func NewReaper(target sessionKiller, clk clock.Clock, logger *slog.Logger) *Reaper {
	return &Reaper{
		target:   target,
		clock:    clk,
		logger:   logger,
		schedule: make(chan scheduleRequest),
		stopped:  make(chan struct{}),
	}
}

// Schedule sets owner, registered as name, to be killed at reapAt,
// superseding every earlier deadline for name. A zero reapAt only
// supersedes. Schedule is a no-op once Run has returned.
func (r *Reaper) Schedule(name string, owner *Session, reapAt time.Time) {
	select {
	case r.schedule <- scheduleRequest{name: name, owner: owner, reapAt: reapAt}:
	case <-r.stopped:
	}
}

// Cancel supersedes every outstanding deadline for name.
func (r *Reaper) Cancel(name string) {
	r.Schedule(name, nil, time.Time{})
}

// Run processes schedules and deadlines until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	defer close(r.stopped)

	var queue reapQueue
	generations := make(map[string]uint64)

	for {
		var timer *clock.Timer
		var fired <-chan time.Time
		if queue.Len() > 0 {
			timer = r.clock.NewTimer(queue[0].reapAt.Sub(r.clock.Now()))
			fired = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case request := <-r.schedule:
			if timer != nil {
				timer.Stop()
			}
			generations[request.name]++
			if request.reapAt.IsZero() {
				continue
			}
			heap.Push(&queue, reapable{
				name:       request.name,
				owner:      request.owner,
				generation: generations[request.name],
				reapAt:     request.reapAt,
			})

		case now := <-fired:
			for queue.Len() > 0 && !queue[0].reapAt.After(now) {
				entry := heap.Pop(&queue).(reapable)
				if entry.generation != generations[entry.name] {
					r.logger.Debug("discarding stale reap deadline",
						"session", entry.name,
						"generation", entry.generation,
						"current_generation", generations[entry.name],
					)
					continue
				}
				r.logger.Info("session ttl expired", "session", entry.name)
				go r.reap(entry.name, entry.owner)
			}
		}
	}
}

func (r *Reaper) reap(name string, owner *Session) {
	err := r.target.KillExpired(name, owner)
	if errors.Is(err, ErrSessionNotFound) {
		r.logger.Debug("expired session already gone", "session", name)
		return
	}
	if err != nil {
		r.logger.Warn("killing expired session failed", "session", name, "error", err)
	}
}
