package main

import (
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	cst "wuyrush.io/serendipity/constants"
	"wuyrush.io/serendipity/engine"
	"wuyrush.io/serendipity/geocode"
	"wuyrush.io/serendipity/policy"
)

// loadConfig reads an optional .env file, then env vars. Variables already set in the environment win
// over the file.
func loadConfig() {
	if err := godotenv.Load(); err != nil {
		log.WithError(err).Debug("no .env file loaded")
	}
	viper.AutomaticEnv()

	viper.SetDefault(cst.EnvStoreBackend, "file")
	viper.SetDefault(cst.EnvStoreFileDir, ".serendipity")
	viper.SetDefault(cst.EnvRedisHost, "localhost")
	viper.SetDefault(cst.EnvRedisPort, "6379")
	viper.SetDefault(cst.EnvRedisDB, 0)
	viper.SetDefault(cst.EnvDiscoveryAddr, "http://localhost:8000")
	viper.SetDefault(cst.EnvDiscoveryTimeout, 10*time.Second)
	viper.SetDefault(cst.EnvGeocodeCacheSize, 256)
	viper.SetDefault(cst.EnvNATSSubject, "serendipity")
	viper.SetDefault(cst.EnvAppHost, "127.0.0.1")
	viper.SetDefault(cst.EnvAppPort, "8080")

	viper.SetDefault(cst.EnvMaxAccuracy, cst.DefaultMaxAccuracyMeters)
	viper.SetDefault(cst.EnvMinMove, cst.DefaultMinMoveMeters)
	viper.SetDefault(cst.EnvZoneEnter, cst.DefaultZoneEnterMeters)
	viper.SetDefault(cst.EnvZoneExit, cst.DefaultZoneExitMeters)
	viper.SetDefault(cst.EnvCooldown, cst.DefaultNotifyCooldown)
	viper.SetDefault(cst.EnvHeartbeatMinGap, cst.DefaultHeartbeatMinInterval)
	viper.SetDefault(cst.EnvHeartbeatPeriod, cst.DefaultHeartbeatPeriod)
	viper.SetDefault(cst.EnvStagger, cst.DefaultNotifyStagger)
	viper.SetDefault(cst.EnvDiscoveryRadius, cst.DefaultDiscoveryRadiusMeters)
	viper.SetDefault(cst.EnvExploredStride, cst.DefaultExploredStrideMeters)
	viper.SetDefault(cst.EnvClusterThreshold, cst.DefaultClusterThresholdMeters)
	viper.SetDefault(cst.EnvSuppressionFactor, cst.DefaultSuppressionReportFactor)
}

func engineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Scheduler.Filter.MaxAccuracyMeters = viper.GetFloat64(cst.EnvMaxAccuracy)
	cfg.Scheduler.Filter.MinMoveMeters = viper.GetFloat64(cst.EnvMinMove)
	cfg.Scheduler.Zone.EnterMeters = viper.GetFloat64(cst.EnvZoneEnter)
	cfg.Scheduler.Zone.ExitMeters = viper.GetFloat64(cst.EnvZoneExit)
	cfg.Scheduler.MinInterval = viper.GetDuration(cst.EnvHeartbeatMinGap)
	cfg.Scheduler.Stagger = viper.GetDuration(cst.EnvStagger)
	cfg.Scheduler.SuppressionFactor = viper.GetInt(cst.EnvSuppressionFactor)
	cfg.Fog.VisibleMeters = viper.GetFloat64(cst.EnvDiscoveryRadius)
	cfg.Fog.StrideMeters = viper.GetFloat64(cst.EnvExploredStride)
	cfg.HeartbeatPeriod = viper.GetDuration(cst.EnvHeartbeatPeriod)
	cfg.DiscoveryTimeout = viper.GetDuration(cst.EnvDiscoveryTimeout)
	cfg.ClusterThresholdMeters = viper.GetFloat64(cst.EnvClusterThreshold)
	return cfg
}

func policyConfig() policy.Config {
	return policy.Config{Cooldown: viper.GetDuration(cst.EnvCooldown)}
}

func geocodeConfig() geocode.Config {
	cfg := geocode.DefaultConfig()
	cfg.Addr = viper.GetString(cst.EnvGeocodeAddr)
	cfg.CacheSize = viper.GetInt(cst.EnvGeocodeCacheSize)
	return cfg
}
