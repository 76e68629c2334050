package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pe "wuyrush.io/serendipity/errors"
	"wuyrush.io/serendipity/geo"
	md "wuyrush.io/serendipity/models"
)

var origin = md.Location{Latitude: 35.6762, Longitude: 139.6503}

func sample(l md.Location, accuracy *float64) md.Sample {
	return md.Sample{Location: l, AccuracyMeters: accuracy, Timestamp: time.Unix(0, 0)}
}

func acc(m float64) *float64 {
	return &m
}

func TestEvaluate(t *testing.T) {
	prev := sample(origin, acc(5))
	tcs := []struct {
		name     string
		s        md.Sample
		prev     *md.Sample
		expected Decision
	}{
		{
			name:     "FirstSample",
			s:        sample(origin, acc(5)),
			expected: Accepted,
		},
		{
			name:     "NoAccuracyReported",
			s:        sample(origin, nil),
			expected: Accepted,
		},
		{
			name:     "AccuracyAtThreshold",
			s:        sample(origin, acc(20)),
			expected: Accepted,
		},
		{
			name:     "AccuracyOverThreshold",
			s:        sample(origin, acc(20.5)),
			expected: RejectedLowAccuracy,
		},
		{
			name:     "LowAccuracyWinsOverDrift",
			s:        sample(origin, acc(80)),
			prev:     &prev,
			expected: RejectedLowAccuracy,
		},
		{
			name:     "Drift",
			s:        sample(geo.Offset(origin, 2, 0), acc(5)),
			prev:     &prev,
			expected: RejectedTooSmallMove,
		},
		{
			name:     "RealMove",
			s:        sample(geo.Offset(origin, 4, 0), acc(5)),
			prev:     &prev,
			expected: Accepted,
		},
	}
	for _, c := range tcs {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, Evaluate(DefaultConfig(), c.s, c.prev))
		})
	}
}

func TestFilter_LowAccuracyKeepsPrevious(t *testing.T) {
	f := New(DefaultConfig())
	require.Equal(t, Accepted, f.Accept(sample(origin, acc(5))))
	for _, a := range []float64{20.01, 25, 50, 1000} {
		bad := sample(geo.Offset(origin, 100, 0), acc(a))
		assert.Equal(t, RejectedLowAccuracy, f.Accept(bad))
		assert.Equal(t, origin, f.LastAccepted().Location, "previous accepted must not change")
		assert.Equal(t, bad.Location, f.LastRaw().Location, "raw fallback must follow every sample")
	}
}

func TestFilter_DriftKeepsPrevious(t *testing.T) {
	f := New(DefaultConfig())
	require.Equal(t, Accepted, f.Accept(sample(origin, acc(5))))
	for _, north := range []float64{0.5, 1, 2, 2.9} {
		assert.Equal(t, RejectedTooSmallMove, f.Accept(sample(geo.Offset(origin, north, 0), acc(5))))
		assert.Equal(t, origin, f.LastAccepted().Location)
	}
	moved := geo.Offset(origin, 10, 0)
	assert.Equal(t, Accepted, f.Accept(sample(moved, acc(5))))
	assert.Equal(t, moved, f.LastAccepted().Location)
}

func TestFilter_BestEffort(t *testing.T) {
	f := New(DefaultConfig())
	_, ok := f.BestEffort()
	assert.False(t, ok)

	raw := sample(origin, acc(90))
	assert.Equal(t, RejectedLowAccuracy, f.Accept(raw))
	l, ok := f.BestEffort()
	assert.True(t, ok)
	assert.Equal(t, origin, l, "falls back to the last raw sample")

	good := geo.Offset(origin, 30, 0)
	f.Accept(sample(good, acc(3)))
	f.Accept(sample(geo.Offset(origin, 200, 0), acc(90)))
	l, _ = f.BestEffort()
	assert.Equal(t, good, l, "prefers the last accepted sample")
}

func TestDecisionErr(t *testing.T) {
	assert.Nil(t, Accepted.Err())
	assert.Nil(t, RejectedTooSmallMove.Err())
	err := RejectedLowAccuracy.Err()
	if assert.NotNil(t, err) {
		assert.Equal(t, pe.ErrCodeLowAccuracy, err.Code)
	}
}
