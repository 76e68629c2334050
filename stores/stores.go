package stores

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	cst "wuyrush.io/serendipity/constants"
	pe "wuyrush.io/serendipity/errors"
	md "wuyrush.io/serendipity/models"
)

const (
	// template to form the key of one pin's notification record
	keyTmplNotification = `notification.%s`
	// key of the explored circle log
	keyExplored = "explored"
)

// NotificationStore persists spaced-repetition records across sessions.
type NotificationStore interface {
	// GetRecord returns an ErrCodeNotFound error for pins never notified nor rated
	GetRecord(pinID string) (*md.NotificationRecord, *pe.Err)
	PutRecord(r *md.NotificationRecord) *pe.Err
}

// CircleStore persists the explored circle log across sessions.
type CircleStore interface {
	// LoadCircles returns an empty log when nothing was saved yet
	LoadCircles() ([]md.ExploredCircle, *pe.Err)
	SaveCircles(cs []md.ExploredCircle) *pe.Err
}

// KVStore implements NotificationStore and CircleStore on top of any KV.
type KVStore struct {
	KV KV
}

func notificationKey(pinID string) string {
	return fmt.Sprintf(keyTmplNotification, pinID)
}

func (s *KVStore) GetRecord(pinID string) (*md.NotificationRecord, *pe.Err) {
	b, err := s.KV.Get(notificationKey(pinID))
	if err != nil {
		return nil, err
	}
	r := &md.NotificationRecord{}
	if err := json.Unmarshal(b, r); err != nil {
		log.WithError(err).WithField(cst.LogFieldPinID, pinID).Error("error unmarshalling notification record")
		return nil, pe.NewServiceFailure("error unmarshalling notification record").WithCause(err)
	}
	return r, nil
}

func (s *KVStore) PutRecord(r *md.NotificationRecord) *pe.Err {
	b, err := json.Marshal(r)
	if err != nil {
		return pe.NewServiceFailure("error marshalling notification record").WithCause(err)
	}
	return s.KV.Set(notificationKey(r.PinID), b)
}

func (s *KVStore) LoadCircles() ([]md.ExploredCircle, *pe.Err) {
	b, err := s.KV.Get(keyExplored)
	if err != nil {
		if err.Code == pe.ErrCodeNotFound {
			return []md.ExploredCircle{}, nil
		}
		return nil, err
	}
	cs := []md.ExploredCircle{}
	if err := json.Unmarshal(b, &cs); err != nil {
		log.WithError(err).Error("error unmarshalling explored circles")
		return nil, pe.NewServiceFailure("error unmarshalling explored circles").WithCause(err)
	}
	return cs, nil
}

func (s *KVStore) SaveCircles(cs []md.ExploredCircle) *pe.Err {
	b, err := json.Marshal(cs)
	if err != nil {
		return pe.NewServiceFailure("error marshalling explored circles").WithCause(err)
	}
	return s.KV.Set(keyExplored, b)
}
