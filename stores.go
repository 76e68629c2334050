package main

import (
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/spf13/viper"

	rt "wuyrush.io/serendipity/common/retry"
	cst "wuyrush.io/serendipity/constants"
	pe "wuyrush.io/serendipity/errors"
	st "wuyrush.io/serendipity/stores"
)

const (
	storeRedis  = "redis"
	storeFile   = "file"
	storeMemory = "memory"
)

// setupKV builds the persistence backend named by SERENDIPITY_STORE. Keys of a Redis shared among
// devices are namespaced by device id.
func setupKV(deviceID string) (st.KV, error) {
	switch backend := viper.GetString(cst.EnvStoreBackend); backend {
	case storeRedis:
		return setupRedisKV(deviceID)
	case storeFile:
		return &st.FileKV{Dir: viper.GetString(cst.EnvStoreFileDir)}, nil
	case storeMemory:
		return st.NewMemoryKV(), nil
	default:
		return nil, pe.NewBadInput(fmt.Sprintf("unknown store backend %q", backend))
	}
}

func setupRedisKV(deviceID string) (st.KV, error) {
	retryOpts := []rt.RetryOption{
		rt.WithTimeout(3 * time.Second),
		rt.WithBaseDelay(100 * time.Millisecond),
		rt.WithExp(2.0),
		rt.WithRetryOn(rt.IsDepOffline),
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:       fmt.Sprintf("%s:%s", viper.GetString(cst.EnvRedisHost), viper.GetString(cst.EnvRedisPort)),
		Password:   viper.GetString(cst.EnvRedisPasswd),
		DB:         viper.GetInt(cst.EnvRedisDB),
		MaxRetries: 3,
	})
	// NOTE a started Redis container is not necessarily a Redis ready to serve; verify the client is up
	pingFn := func() error {
		if _, err := redisClient.Ping().Result(); err != nil {
			return pe.NewDependencyFailure("error pinging Redis").WithCause(err)
		}
		return nil
	}
	if err := rt.Retry(pingFn, retryOpts...); err != nil {
		redisClient.Close()
		return nil, pe.NewServiceFailure("failed initializing Redis").WithCause(err)
	}
	return &st.RedisKV{DB: redisClient, Prefix: fmt.Sprintf("serendipity:%s:", deviceID)}, nil
}
