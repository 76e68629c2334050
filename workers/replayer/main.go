// Package replayer vends a long-running worker feeding a recorded GPS track to a running engine, one fix
// per tick, for field-free testing of discovery and pass-bys.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"wuyrush.io/serendipity/common/logging"
	rt "wuyrush.io/serendipity/common/retry"
	cst "wuyrush.io/serendipity/constants"
	pe "wuyrush.io/serendipity/errors"
)

func main() {
	if err := runReplayer(); err != nil {
		log.WithError(err).Fatal("error running replayer")
	}
}

// fix is one line of a track file. Its shape matches the engine's location request.
type fix struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters *float64  `json:"accuracyMeters,omitempty"`
	Timestamp      time.Time `json:"timestamp,omitempty"`
}

type replayer struct {
	C      *http.Client
	Target string
	// Now stamps fixes recorded without a timestamp
	Now       func() time.Time
	retryOpts []rt.RetryOption
}

func runReplayer() error {
	viper.AutomaticEnv()
	viper.SetDefault(cst.EnvReplayTarget, "http://127.0.0.1:8080")
	viper.SetDefault(cst.EnvReplayInterval, time.Second)
	logging.SetupLog("TrackReplayer")
	clog := logging.WithFuncName()

	path := viper.GetString(cst.EnvReplayTrack)
	f, err := os.Open(path)
	if err != nil {
		clog.WithError(err).WithField("track", path).Error("error opening track file")
		return err
	}
	defer f.Close()
	fixes, perr := loadTrack(f)
	if perr != nil {
		clog.Errorf("error loading track: %s", perr.Trace())
		return perr
	}
	r := &replayer{
		C:      &http.Client{Timeout: 5 * time.Second},
		Target: viper.GetString(cst.EnvReplayTarget),
		Now:    time.Now,
		retryOpts: []rt.RetryOption{
			rt.WithTimeout(3 * time.Second),
			rt.WithBaseDelay(100 * time.Millisecond),
			rt.WithExp(2.0),
			rt.WithRetryOn(rt.IsDepOffline),
		},
	}
	if err := r.Run(fixes, viper.GetDuration(cst.EnvReplayInterval)); err != nil {
		return err
	}
	return nil
}

// loadTrack parses a track in JSON lines format. Blank lines are skipped.
func loadTrack(r io.Reader) ([]fix, *pe.Err) {
	var fixes []fix
	sc := bufio.NewScanner(r)
	for ln := 1; sc.Scan(); ln++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var fx fix
		if err := json.Unmarshal(line, &fx); err != nil {
			return nil, pe.NewBadInput(fmt.Sprintf("malformed fix at line %d", ln)).WithCause(err)
		}
		fixes = append(fixes, fx)
	}
	if err := sc.Err(); err != nil {
		return nil, pe.NewServiceFailure("error reading track").WithCause(err)
	}
	return fixes, nil
}

// Run pushes one fix per tick until the track is exhausted or the process is told to stop.
func (r *replayer) Run(fixes []fix, freq time.Duration) *pe.Err {
	clog := logging.WithFuncName()
	if freq <= 0 {
		clog.WithField("interval", freq).Fatal("got non-positive replay interval")
	}
	tkr := time.NewTicker(freq)
	defer tkr.Stop()
	// ensure the worker can be responsive to system signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, os.Interrupt)
	for i := 0; i < len(fixes); {
		select {
		case <-tkr.C:
			if err := r.Push(fixes[i]); err != nil {
				if pe.HasCode(err, pe.ErrCodeBadRequest) {
					clog.WithError(err).WithField("line", i+1).Warn("engine rejected fix, skipping")
				} else {
					clog.Errorf("error pushing fix: %s", err.Trace())
					return err
				}
			}
			i++
		case <-sigChan:
			clog.Info("got termination signal from kernel. Stopping")
			return nil
		}
	}
	clog.WithField("count", len(fixes)).Info("track replayed")
	return nil
}

// Push posts a single fix, retrying while the engine is unreachable.
func (r *replayer) Push(fx fix) *pe.Err {
	if fx.Timestamp.IsZero() {
		fx.Timestamp = r.Now()
	}
	body, err := json.Marshal(fx)
	if err != nil {
		return pe.NewServiceFailure("error marshalling fix").WithCause(err)
	}
	var rejected *pe.Err
	pushFn := func() error {
		resp, err := r.C.Post(r.Target+"/location", "application/json", bytes.NewReader(body))
		if err != nil {
			return pe.NewNetworkFailure("error pushing fix").WithCause(err)
		}
		defer resp.Body.Close()
		switch {
		case resp.StatusCode >= 500:
			return pe.NewDependencyFailure(fmt.Sprintf("engine responded with %d", resp.StatusCode))
		case resp.StatusCode >= 400:
			rejected = pe.NewBadInput(fmt.Sprintf("engine responded with %d", resp.StatusCode))
		}
		return nil
	}
	if err := rt.Retry(pushFn, r.retryOpts...); err != nil {
		return pe.NewNetworkFailure("engine unreachable").WithCause(err)
	}
	return rejected
}
