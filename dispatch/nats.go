package dispatch

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"wuyrush.io/serendipity/common/logging"
	pe "wuyrush.io/serendipity/errors"
	md "wuyrush.io/serendipity/models"
)

const (
	EventNotify = "notify"
	EventPassBy = "passby"
)

// Event is the message published for every notification and pass-by.
type Event struct {
	Kind      string    `json:"kind"`
	BatchID   string    `json:"batchId,omitempty"`
	PinID     string    `json:"pinId"`
	Content   string    `json:"content,omitempty"`
	Latitude  float64   `json:"latitude,omitempty"`
	Longitude float64   `json:"longitude,omitempty"`
	PlaySound bool      `json:"playSound,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher is the part of *nats.Conn the presenter needs.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// NATSPresenter publishes events to <subject>.notify and <subject>.passby so that a device side
// notification service can pick them up.
type NATSPresenter struct {
	Conn    Publisher
	Subject string
}

func (p *NATSPresenter) Notify(batchID string, d md.Dispatch) error {
	return p.publish(EventNotify, Event{
		Kind:      EventNotify,
		BatchID:   batchID,
		PinID:     d.Pin.ID,
		Content:   d.Pin.Content,
		Latitude:  d.Pin.Latitude,
		Longitude: d.Pin.Longitude,
		PlaySound: d.PlaySound,
		At:        time.Now(),
	})
}

// PassBy publishes a silent pass-by of the pin.
func (p *NATSPresenter) PassBy(pinID string) error {
	return p.publish(EventPassBy, Event{Kind: EventPassBy, PinID: pinID, At: time.Now()})
}

func (p *NATSPresenter) publish(kind string, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return pe.NewServiceFailure("error marshalling event").WithCause(err)
	}
	if err := p.Conn.Publish(p.Subject+"."+kind, b); err != nil {
		return pe.NewDependencyFailure("error publishing event").WithCause(err)
	}
	return nil
}

// ConnectNATS connects to the NATS server at url, reconnecting forever on disconnection.
func ConnectNATS(url string) (*nats.Conn, error) {
	clog := logging.WithFuncName()
	nc, err := nats.Connect(url,
		nats.Name("serendipity"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			clog.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			clog.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			clog.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, pe.NewDependencyFailure("unable to connect to NATS").WithCause(err)
	}
	return nc, nil
}
