package cmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/agent-faceid/internal/database"
)

// reindexLoop rebuilds the agent index every interval until ctx is done.
func reindexLoop(ctx context.Context, interval time.Duration, rebuilder database.HNSWRebuilder, log logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rebuilder.RebuildHNSW(ctx); err != nil {
				log.WithError(err).Warn("periodic agent index rebuild failed")
				continue
			}
			log.WithField("agents", rebuilder.HNSWCount()).Debug("agent index rebuilt")
		}
	}
}
