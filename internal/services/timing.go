package services

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// backgroundWriteTimeout bounds detached cache writes and community
// contributions so abandoned goroutines cannot pile up behind a dead store.
const backgroundWriteTimeout = 15 * time.Second

func TrackTime(funcName string, start time.Time) {
	elapsed := time.Since(start)
	log.Debugf("%s took %d ms", funcName, elapsed.Milliseconds())
}
