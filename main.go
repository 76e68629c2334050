// Command serendipity runs the pin discovery engine of one device and serves it to a local UI.
package main

import (
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := serve(); err != nil {
		log.WithError(err).Fatal("Error start up engine and serve requests")
	}
}
