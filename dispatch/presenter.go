package dispatch

import (
	log "github.com/sirupsen/logrus"

	"wuyrush.io/serendipity/common/logging"
	cst "wuyrush.io/serendipity/constants"
	md "wuyrush.io/serendipity/models"
)

// Presenter shows one notification right away. Delays are the Executor's business.
type Presenter interface {
	Notify(batchID string, d md.Dispatch) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(batchID string, d md.Dispatch) error

func (f PresenterFunc) Notify(batchID string, d md.Dispatch) error {
	return f(batchID, d)
}

// LogPresenter writes notifications to the log. It backs headless runs.
type LogPresenter struct{}

func (LogPresenter) Notify(batchID string, d md.Dispatch) error {
	log.WithFields(log.Fields{
		cst.LogFieldPinID: d.Pin.ID,
		"batchID":         batchID,
		"playSound":       d.PlaySound,
	}).Infof("new pin nearby: %s", d.Pin.Content)
	return nil
}

// Fanout hands every notification to all its presenters. A failing presenter does not keep the others
// from being notified.
type Fanout []Presenter

func (f Fanout) Notify(batchID string, d md.Dispatch) error {
	var first error
	for _, p := range f {
		if err := p.Notify(batchID, d); err != nil {
			logging.WithFuncName().WithError(err).WithField(cst.LogFieldPinID, d.Pin.ID).Warn("presenter failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}
