package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"wuyrush.io/serendipity/client"
	"wuyrush.io/serendipity/common/logging"
	cst "wuyrush.io/serendipity/constants"
	"wuyrush.io/serendipity/dispatch"
	"wuyrush.io/serendipity/engine"
	"wuyrush.io/serendipity/fog"
	"wuyrush.io/serendipity/geocode"
	"wuyrush.io/serendipity/policy"
	"wuyrush.io/serendipity/presenter"
	st "wuyrush.io/serendipity/stores"
)

const feedSize = 100

// passByPublisher forwards pass-bys to NATS.
type passByPublisher struct {
	engine.NopListener
	p *dispatch.NATSPresenter
}

func (l passByPublisher) OnPassBy(pinID string) {
	if err := l.p.PassBy(pinID); err != nil {
		logging.WithFuncName().WithError(err).WithField(cst.LogFieldPinID, pinID).Warn("error publishing pass-by")
	}
}

// start up the engine and the presenter, and serve until terminated
func serve() error {
	loadConfig()
	logging.SetupLog("Serendipity")
	if !viper.GetBool(cst.EnvVerbose) {
		gin.SetMode(gin.ReleaseMode)
	}
	clog := logging.WithFuncName()

	deviceID := viper.GetString(cst.EnvDeviceID)
	if deviceID == "" {
		deviceID = uuid.New().String()
		clog.WithField("deviceID", deviceID).Warnf("%s not set, using a random device id", cst.EnvDeviceID)
	}
	kv, err := setupKV(deviceID)
	if err != nil {
		clog.WithError(err).Error("error setting up store")
		return err
	}
	defer kv.Close()
	store := &st.KVStore{KV: kv}

	cfg := engineConfig()
	cl := client.New(&client.Config{
		Addr:           viper.GetString(cst.EnvDiscoveryAddr),
		DeviceID:       deviceID,
		RadiusMeters:   cfg.Fog.VisibleMeters,
		RequestTimeout: cfg.DiscoveryTimeout,
	})
	defer cl.Close()

	feed := presenter.NewFeed(feedSize)
	presenters := dispatch.Fanout{dispatch.LogPresenter{}, feed}
	listeners := engine.Listeners{feed}
	if url := viper.GetString(cst.EnvNATSURL); url != "" {
		nc, err := dispatch.ConnectNATS(url)
		if err != nil {
			clog.WithError(err).Error("error connecting to NATS")
			return err
		}
		defer nc.Close()
		np := &dispatch.NATSPresenter{Conn: nc, Subject: viper.GetString(cst.EnvNATSSubject)}
		presenters = append(presenters, np)
		listeners = append(listeners, passByPublisher{p: np})
	}
	opts := []engine.Option{
		engine.WithListener(listeners),
		engine.WithPassByReporter(cl),
	}
	if viper.GetString(cst.EnvGeocodeAddr) != "" {
		opts = append(opts, engine.WithGeocoder(geocode.NewNominatim(geocodeConfig())))
	}

	eng := engine.New(cfg, cl, policy.New(policyConfig(), store), fog.New(cfg.Fog, store), presenters, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.Start(ctx)
	defer eng.Stop()

	svr := presenter.New(eng, feed)
	host, port := viper.GetString(cst.EnvAppHost), viper.GetString(cst.EnvAppPort)
	hs := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", host, port),
		Handler: svr.Router,
	}
	errs := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"host":     host,
			"port":     port,
			"deviceID": deviceID,
		}).Infof("serendipity is starting up")
		errs <- hs.ListenAndServe()
	}()

	// ensure the engine can be responsive to system signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, os.Interrupt)
	select {
	case err := <-errs:
		if err != http.ErrServerClosed {
			clog.WithError(err).Error("presenter stopped serving")
			return err
		}
	case <-sigChan:
		clog.Info("got termination signal from kernel. Stopping")
	}
	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	return hs.Shutdown(sctx)
}
