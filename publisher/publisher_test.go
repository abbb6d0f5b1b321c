package publisher

import (
	"errors"
	"testing"
	"time"

	"github.com/halocircle/guardd/events"
	"github.com/halocircle/guardd/types/fix"
	"github.com/halocircle/guardd/types/motion"
	"github.com/paulmach/orb/geojson"
)

type memStore struct {
	records map[fix.UserID]*geojson.Feature
	fail    bool
}

func (m *memStore) MergeCurrentLocation(user fix.UserID, f *geojson.Feature) error {
	if m.fail {
		return errors.New("store down")
	}
	if m.records == nil {
		m.records = map[fix.UserID]*geojson.Feature{}
	}
	m.records[user] = f
	return nil
}

func sample() motion.Sample {
	return motion.Sample{
		Lat: 46.9, Lon: -114.1, SpeedMPH: 30, BatteryPct: 80,
		IsDriving: true, AccuracyMeters: 3, Tier: motion.TierHigh,
		ObservedAt: time.Unix(1731952467, 0),
	}
}

func TestPublishUpserts(t *testing.T) {
	store := &memStore{}
	p := New(store)
	p.Publish("rye", sample())
	f := store.records["rye"]
	if f == nil {
		t.Fatal("no record written")
	}
	if f.Properties.MustInt("Speed") != 30 {
		t.Errorf("Speed = %v", f.Properties["Speed"])
	}
}

func TestPublishEmitsFeed(t *testing.T) {
	ch := make(chan events.SamplePublished, 1)
	sub := events.SamplePublishedFeed.Subscribe(ch)
	defer sub.Unsubscribe()

	p := New(&memStore{})
	p.Publish("rye", sample())

	select {
	case e := <-ch:
		if e.User != "rye" || e.Sample.SpeedMPH != 30 {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no event on published feed")
	}
}

func TestPublishSwallowsStoreFailure(t *testing.T) {
	p := New(&memStore{fail: true})
	// Must not panic or block; the failure is logged and dropped.
	p.Publish("rye", sample())
}
