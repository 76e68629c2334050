// Package filter gates raw GPS fixes before they reach the rest of the engine.
package filter

import (
	"fmt"

	cst "wuyrush.io/serendipity/constants"
	pe "wuyrush.io/serendipity/errors"
	"wuyrush.io/serendipity/geo"
	md "wuyrush.io/serendipity/models"
)

type Decision int

const (
	Accepted Decision = iota
	RejectedLowAccuracy
	RejectedTooSmallMove
)

func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case RejectedLowAccuracy:
		return "low_accuracy"
	case RejectedTooSmallMove:
		return "too_small_move"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Err returns the error value of a low accuracy rejection, nil otherwise. A too-small move is plain
// drift and not worth an error.
func (d Decision) Err() *pe.Err {
	if d == RejectedLowAccuracy {
		return pe.NewLowAccuracy("location sample accuracy too low")
	}
	return nil
}

type Config struct {
	// MaxAccuracyMeters rejects samples whose reported accuracy exceeds it
	MaxAccuracyMeters float64
	// MinMoveMeters rejects samples closer than this to the previous accepted sample
	MinMoveMeters float64
}

// DefaultConfig is the policy for the continuous tracking stream. Entry points such as locking a
// drop location apply their own looser accuracy gate.
func DefaultConfig() Config {
	return Config{
		MaxAccuracyMeters: cst.DefaultMaxAccuracyMeters,
		MinMoveMeters:     cst.DefaultMinMoveMeters,
	}
}

// Evaluate decides whether s should be accepted given the previously accepted sample, which is nil when
// nothing was accepted yet. It has no side effects.
func Evaluate(cfg Config, s md.Sample, prev *md.Sample) Decision {
	if s.AccuracyMeters != nil && *s.AccuracyMeters > cfg.MaxAccuracyMeters {
		return RejectedLowAccuracy
	}
	if prev != nil && geo.DistanceMeters(s.Location, prev.Location) < cfg.MinMoveMeters {
		return RejectedTooSmallMove
	}
	return Accepted
}

// Filter holds the one piece of state the gate needs: the last accepted sample. It also remembers the
// last raw sample regardless of the decision, for callers needing a best effort current position.
// Filter is not safe for concurrent use.
type Filter struct {
	cfg          Config
	lastAccepted *md.Sample
	lastRaw      *md.Sample
}

func New(cfg Config) *Filter {
	return &Filter{cfg: cfg}
}

// Accept evaluates s and advances the last accepted sample on acceptance only.
func (f *Filter) Accept(s md.Sample) Decision {
	raw := s
	f.lastRaw = &raw
	d := Evaluate(f.cfg, s, f.lastAccepted)
	if d == Accepted {
		acc := s
		f.lastAccepted = &acc
	}
	return d
}

// LastAccepted returns the most recent accepted sample, nil if none.
func (f *Filter) LastAccepted() *md.Sample {
	return f.lastAccepted
}

// LastRaw returns the most recent sample seen, accepted or not.
func (f *Filter) LastRaw() *md.Sample {
	return f.lastRaw
}

// BestEffort returns the last accepted position, falling back to the last raw one.
func (f *Filter) BestEffort() (md.Location, bool) {
	if f.lastAccepted != nil {
		return f.lastAccepted.Location, true
	}
	if f.lastRaw != nil {
		return f.lastRaw.Location, true
	}
	return md.Location{}, false
}
