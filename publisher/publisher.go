/*
Package publisher merges derived motion samples into each user's durable
current-location record. Best-effort: a failed publish is logged and
swallowed, never allowed to block the inference loop.
*/
package publisher

import (
	"log/slog"

	"github.com/halocircle/guardd/events"
	"github.com/halocircle/guardd/metrics/influxdb"
	"github.com/halocircle/guardd/types/fix"
	"github.com/halocircle/guardd/types/motion"
	"github.com/paulmach/orb/geojson"
)

// Store is the durable collaborator: merge-upsert of one current-location
// record per user. *state.Store satisfies it.
type Store interface {
	MergeCurrentLocation(user fix.UserID, f *geojson.Feature) error
}

type Publisher struct {
	store  Store
	logger *slog.Logger
}

func New(store Store) *Publisher {
	return &Publisher{
		store:  store,
		logger: slog.With("c", "publisher"),
	}
}

// Publish upserts the sample into the user's current-location record and
// emits it on the published feed. Errors are logged and swallowed; the next
// sample supersedes this one.
func (p *Publisher) Publish(user fix.UserID, sample motion.Sample) {
	if err := p.store.MergeCurrentLocation(user, sample.Feature(user)); err != nil {
		p.logger.Error("Current-location merge failed, sample dropped",
			"user", user, "error", err)
		return
	}

	events.SamplePublishedFeed.Send(events.SamplePublished{User: user, Sample: sample})

	if influxdb.Enabled() {
		// Fire and forget; influx is observability, not the record.
		go func() {
			if err := influxdb.ExportSamples(user, []motion.Sample{sample}); err != nil {
				p.logger.Warn("InfluxDB export failed", "user", user, "error", err)
			}
		}()
	}
}
