// Package constants vends constants used in various components of the discovery engine, e.g., env var names
package constants

import "time"

const (
	// -------------- env vars --------------
	// common
	EnvVerbose  = "SERENDIPITY_VERBOSE"
	EnvDeviceID = "SERENDIPITY_DEVICE_ID"
	// stores
	EnvStoreBackend = "SERENDIPITY_STORE" // redis | file | memory
	EnvStoreFileDir = "SERENDIPITY_STORE_DIR"
	EnvRedisHost    = "REDIS_HOST"
	EnvRedisPort    = "REDIS_PORT"
	EnvRedisPasswd  = "REDIS_PASSWD"
	EnvRedisDB      = "REDIS_DB"
	// discovery api
	EnvDiscoveryAddr    = "SERENDIPITY_DISCOVERY_ADDR"
	EnvDiscoveryTimeout = "SERENDIPITY_DISCOVERY_TIMEOUT"
	EnvGeocodeAddr      = "SERENDIPITY_GEOCODE_ADDR"
	EnvGeocodeCacheSize = "SERENDIPITY_GEOCODE_CACHE_SIZE"
	// notification transport
	EnvNATSURL     = "NATS_URL"
	EnvNATSSubject = "SERENDIPITY_NATS_SUBJECT"
	// presenter
	EnvAppHost = "SERENDIPITY_HOST"
	EnvAppPort = "SERENDIPITY_PORT"
	// track replayer
	EnvReplayTrack    = "SERENDIPITY_REPLAY_TRACK"
	EnvReplayTarget   = "SERENDIPITY_REPLAY_TARGET"
	EnvReplayInterval = "SERENDIPITY_REPLAY_INTERVAL"
	// tunables
	EnvMaxAccuracy       = "SERENDIPITY_MAX_ACCURACY_METERS"
	EnvMinMove           = "SERENDIPITY_MIN_MOVE_METERS"
	EnvZoneEnter         = "SERENDIPITY_ZONE_ENTER_METERS"
	EnvZoneExit          = "SERENDIPITY_ZONE_EXIT_METERS"
	EnvCooldown          = "SERENDIPITY_NOTIFY_COOLDOWN"
	EnvHeartbeatMinGap   = "SERENDIPITY_HEARTBEAT_MIN_INTERVAL"
	EnvHeartbeatPeriod   = "SERENDIPITY_HEARTBEAT_PERIOD"
	EnvStagger           = "SERENDIPITY_NOTIFY_STAGGER"
	EnvDiscoveryRadius   = "SERENDIPITY_DISCOVERY_RADIUS_METERS"
	EnvExploredStride    = "SERENDIPITY_EXPLORED_STRIDE_METERS"
	EnvClusterThreshold  = "SERENDIPITY_CLUSTER_THRESHOLD_METERS"
	EnvSuppressionFactor = "SERENDIPITY_SUPPRESSION_FACTOR"

	// -------------- log fields --------------
	LogFieldFuncName  = "funcName"
	LogFieldPinID     = "pinID"
	LogFieldSessionID = "sessionID"
)

// Hand-tuned defaults. They carry no derivation; keep them for behavior parity and override through
// configuration instead of re-deriving.
const (
	DefaultMaxAccuracyMeters       = 20.0
	DefaultDropMaxAccuracyMeters   = 50.0
	DefaultMinMoveMeters           = 3.0
	DefaultZoneEnterMeters         = 20.0
	DefaultZoneExitMeters          = 22.0
	DefaultNotifyCooldown          = 7 * 24 * time.Hour
	DefaultHeartbeatMinInterval    = 5 * time.Second
	DefaultHeartbeatPeriod         = 10 * time.Second
	DefaultNotifyStagger           = 800 * time.Millisecond
	DefaultDiscoveryRadiusMeters   = 50.0
	DefaultExploredStrideMeters    = 15.0
	DefaultExploredRadiusMeters    = 50.0
	DefaultHexRadiusMeters         = 150.0
	DefaultLabelFadeNearMeters     = 10.0
	DefaultLabelFadeFarMeters      = 30.0
	DefaultLabelMinOpacity         = 0.05
	DefaultClusterThresholdMeters  = 4.0
	DefaultSuppressionReportFactor = 2
)
