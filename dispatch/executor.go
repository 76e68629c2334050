// Package dispatch realizes notification plans: it waits out the stagger of each planned notification
// with timers and hands it to a Presenter.
package dispatch

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"wuyrush.io/serendipity/common/logging"
	cst "wuyrush.io/serendipity/constants"
	md "wuyrush.io/serendipity/models"
)

type pending struct {
	batchID string
	item    md.Dispatch
	// wait after the previous notification of the same plan
	gap time.Duration
}

// Executor fires planned notifications one at a time. It never blocks the caller: each notification
// arms a timer for the next one. Notifications of a plan scheduled while another plan still drains are
// queued behind it, and any two notifications are at least minGap apart.
type Executor struct {
	presenter Presenter
	minGap    time.Duration

	mu        sync.Mutex
	queue     []pending
	timer     *time.Timer
	lastFired time.Time
	// gen invalidates timers armed before the last Cancel
	gen int
}

func NewExecutor(p Presenter, minGap time.Duration) *Executor {
	return &Executor{presenter: p, minGap: minGap}
}

// Schedule queues every item of plan.
func (e *Executor) Schedule(plan *md.Plan) {
	if plan.Empty() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var prev time.Duration
	for _, it := range plan.Items {
		e.queue = append(e.queue, pending{batchID: plan.BatchID, item: it, gap: it.Delay - prev})
		prev = it.Delay
	}
	if e.timer == nil {
		e.arm()
	}
}

// arm starts the timer of the queue head. Callers hold mu.
func (e *Executor) arm() {
	if len(e.queue) == 0 {
		e.timer = nil
		return
	}
	wait := e.queue[0].gap
	if !e.lastFired.IsZero() {
		if floor := e.minGap - time.Since(e.lastFired); floor > wait {
			wait = floor
		}
	}
	gen := e.gen
	e.timer = time.AfterFunc(wait, func() { e.fire(gen) })
}

func (e *Executor) fire(gen int) {
	e.mu.Lock()
	if gen != e.gen || len(e.queue) == 0 {
		e.mu.Unlock()
		return
	}
	head := e.queue[0]
	e.queue = e.queue[1:]
	e.lastFired = time.Now()
	e.arm()
	e.mu.Unlock()

	if err := e.presenter.Notify(head.batchID, head.item); err != nil {
		logging.WithFuncName().WithError(err).WithFields(log.Fields{
			cst.LogFieldPinID: head.item.Pin.ID,
			"batchID":         head.batchID,
		}).Warn("error presenting notification")
	}
}

// Cancel drops every notification not fired yet and returns how many were dropped. The Executor stays
// usable.
func (e *Executor) Cancel() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
	n := len(e.queue)
	e.queue = nil
	return n
}

// Pending returns how many notifications wait to be fired.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}
