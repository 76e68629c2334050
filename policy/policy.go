// Package policy decides whether a discovered pin is worth a notification, following a spaced
// repetition scheme: a pin rated Good comes back after a cooldown, a pin rated Bad never comes back.
package policy

import (
	"time"

	"wuyrush.io/serendipity/common/logging"
	cst "wuyrush.io/serendipity/constants"
	pe "wuyrush.io/serendipity/errors"
	md "wuyrush.io/serendipity/models"
	"wuyrush.io/serendipity/stores"
)

type Config struct {
	// Cooldown is the minimum time between two notifications of a pin rated Good
	Cooldown time.Duration
}

func DefaultConfig() Config {
	return Config{Cooldown: cst.DefaultNotifyCooldown}
}

// Policy keeps notification records in memory and writes every change through to the store. Writes are
// best effort: a failed write is logged and the in-memory record still advances. Policy is not safe for
// concurrent use.
type Policy struct {
	cfg   Config
	store stores.NotificationStore
	// a nil value caches a lookup which found nothing; failed lookups are never cached
	records map[string]*md.NotificationRecord
}

// New creates a Policy persisting to store. A nil store keeps records in memory only.
func New(cfg Config, store stores.NotificationStore) *Policy {
	return &Policy{
		cfg:     cfg,
		store:   store,
		records: make(map[string]*md.NotificationRecord),
	}
}

// lookup returns the pin's record, nil when there is none. ok is false when the store could not be read;
// such a lookup is not cached so the next call asks the store again.
func (p *Policy) lookup(pinID string) (r *md.NotificationRecord, ok bool) {
	if cached, found := p.records[pinID]; found {
		return cached, true
	}
	if p.store != nil {
		var err *pe.Err
		r, err = p.store.GetRecord(pinID)
		if err != nil {
			if err.Code != pe.ErrCodeNotFound {
				logging.WithFuncName().WithField(cst.LogFieldPinID, pinID).Errorf(
					"error loading notification record: %s", err.Trace())
				return nil, false
			}
			r = nil
		}
	}
	p.records[pinID] = r
	return r, true
}

// lookupOrCreate returns the pin's record, creating an empty one when there is none. ok is false when
// the store could not be read; the returned record is then a detached blank one.
func (p *Policy) lookupOrCreate(pinID string) (*md.NotificationRecord, bool) {
	r, ok := p.lookup(pinID)
	if !ok {
		return &md.NotificationRecord{PinID: pinID, LastRating: md.RatingNone}, false
	}
	if r == nil {
		r = &md.NotificationRecord{PinID: pinID, LastRating: md.RatingNone}
		p.records[pinID] = r
	}
	return r, true
}

func (p *Policy) persist(r *md.NotificationRecord) {
	if p.store == nil {
		return
	}
	cp := *r
	if err := p.store.PutRecord(&cp); err != nil {
		logging.WithFuncName().WithField(cst.LogFieldPinID, r.PinID).Errorf(
			"error saving notification record: %s", err.Trace())
	}
}

// ShouldNotify decides whether the pin may be notified at now. A pin whose record cannot be read is not
// notified; it is asked about again on the next cycle.
func (p *Policy) ShouldNotify(pinID string, now time.Time) bool {
	r, ok := p.lookup(pinID)
	if !ok {
		return false
	}
	if r == nil {
		return true
	}
	switch r.LastRating {
	case md.RatingBad:
		return false
	case md.RatingGood:
		return !now.Before(p.eligibleAt(r))
	default:
		return true
	}
}

// eligibleAt is the earliest time a pin rated Good may be notified again. The cooldown counts from
// both the last notification and the rating, whichever ends later.
func (p *Policy) eligibleAt(r *md.NotificationRecord) time.Time {
	at := r.NextEligibleAt
	if fromNotified := r.LastNotifiedAt.Add(p.cfg.Cooldown); !r.LastNotifiedAt.IsZero() && fromNotified.After(at) {
		at = fromNotified
	}
	return at
}

// UpdateLastSeen records that the pin was notified at now. The rating is left untouched. Nothing is
// written when the stored record cannot be read, since a blank record would overwrite its rating.
func (p *Policy) UpdateLastSeen(pinID string, now time.Time) {
	r, ok := p.lookupOrCreate(pinID)
	if !ok {
		logging.WithFuncName().WithField(cst.LogFieldPinID, pinID).Warn(
			"notification record unreadable, last seen time not recorded")
		return
	}
	r.LastNotifiedAt = now
	p.persist(r)
}

// MarkGood rates the pin Good and schedules its next eligibility one cooldown after now. A stored Bad
// rating that cannot be read is not overwritten.
func (p *Policy) MarkGood(pinID string, now time.Time) {
	r, ok := p.lookupOrCreate(pinID)
	if !ok {
		logging.WithFuncName().WithField(cst.LogFieldPinID, pinID).Warn(
			"notification record unreadable, Good rating not recorded")
		return
	}
	r.LastRating = md.RatingGood
	r.NextEligibleAt = now.Add(p.cfg.Cooldown)
	p.persist(r)
}

// MarkBad mutes the pin permanently. The rating is recorded even when the stored record cannot be read.
func (p *Policy) MarkBad(pinID string, now time.Time) {
	r, ok := p.lookupOrCreate(pinID)
	r.LastRating = md.RatingBad
	r.NextEligibleAt = time.Time{}
	if !ok {
		p.records[pinID] = r
	}
	p.persist(r)
}

// Rate dispatches to MarkGood or MarkBad. Rating a pin None is a bad input.
func (p *Policy) Rate(pinID string, rating md.Rating, now time.Time) *pe.Err {
	switch rating {
	case md.RatingGood:
		p.MarkGood(pinID, now)
	case md.RatingBad:
		p.MarkBad(pinID, now)
	default:
		return pe.NewBadInput("rating must be good or bad")
	}
	return nil
}

// Record returns a copy of the pin's record, nil if the pin was never notified nor rated.
func (p *Policy) Record(pinID string) *md.NotificationRecord {
	r, _ := p.lookup(pinID)
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}
