package influxdb

import (
	"sync"
	"time"

	"github.com/halocircle/guardd/params"
	"github.com/halocircle/guardd/types/fix"
	"github.com/halocircle/guardd/types/motion"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// Enabled reports whether an InfluxDB endpoint is configured.
func Enabled() bool {
	return params.InfluxURL != ""
}

// ExportSamples posts motion samples to the InfluxDB Write API. Because it
// accepts a slice, use batches; the Write API will buffer and flush. The
// last error encountered is returned. Callers treat failure as telemetry
// loss, nothing more.
func ExportSamples(user fix.UserID, samples []motion.Sample) error {
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Second)
	client := influxdb2.NewClientWithOptions(params.InfluxURL, params.InfluxToken, opts)
	writeAPI := client.WriteAPI(params.InfluxOrg, params.InfluxBucket)

	// Errors returns a channel for reading errors which occur during async
	// writes. Must be called before writing; the chan is unbuffered and
	// must be drained or the writer will block.
	errorsCh := writeAPI.Errors()
	var err error
	wait := sync.WaitGroup{}
	wait.Add(1)
	go func() {
		defer wait.Done()
		for e := range errorsCh {
			if e != nil {
				err = e
			}
		}
	}()

	for _, s := range samples {
		p := influxdb2.NewPointWithMeasurement("motion").
			SetTime(s.ObservedAt).
			AddTag("user", user.String()).
			AddTag("quality", s.Tier.String()).
			AddField("latitude", s.Lat).
			AddField("longitude", s.Lon).
			AddField("speed", s.SpeedMPH).
			AddField("battery", s.BatteryPct).
			AddField("driving", s.IsDriving).
			AddField("moving", s.Moving).
			AddField("accuracy", s.AccuracyMeters).
			AddField("heading", s.HeadingDeg).
			AddField("elevation", s.AltitudeMeters).
			AddField("cell", s.CellToken())
		writeAPI.WritePoint(p)
	}

	writeAPI.Flush()
	client.Close()
	wait.Wait()
	return err
}
