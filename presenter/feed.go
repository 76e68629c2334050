package presenter

import (
	"sync"
	"time"

	"wuyrush.io/serendipity/dispatch"
	"wuyrush.io/serendipity/engine"
	md "wuyrush.io/serendipity/models"
)

// Feed keeps the most recent notification and pass-by events in memory for clients polling the
// presenter. It is a dispatch.Presenter and an engine.Listener.
type Feed struct {
	engine.NopListener
	mu     sync.Mutex
	max    int
	events []dispatch.Event
}

func NewFeed(max int) *Feed {
	return &Feed{max: max}
}

func (f *Feed) add(ev dispatch.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	if over := len(f.events) - f.max; over > 0 {
		f.events = append([]dispatch.Event(nil), f.events[over:]...)
	}
}

func (f *Feed) Notify(batchID string, d md.Dispatch) error {
	f.add(dispatch.Event{
		Kind:      dispatch.EventNotify,
		BatchID:   batchID,
		PinID:     d.Pin.ID,
		Content:   d.Pin.Content,
		Latitude:  d.Pin.Latitude,
		Longitude: d.Pin.Longitude,
		PlaySound: d.PlaySound,
		At:        time.Now(),
	})
	return nil
}

func (f *Feed) OnPassBy(pinID string) {
	f.add(dispatch.Event{Kind: dispatch.EventPassBy, PinID: pinID, At: time.Now()})
}

// Since returns the events that happened after t, oldest first.
func (f *Feed) Since(t time.Time) []dispatch.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	evs := []dispatch.Event{}
	for _, ev := range f.events {
		if ev.At.After(t) {
			evs = append(evs, ev)
		}
	}
	return evs
}
