package stream

import (
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/halocircle/guardd/common"
)

// TickMeter logs fix-ingest throughput at a fixed interval. Used on the
// replay path, where a whole day of NDJSON can blow past in seconds and
// somebody always wants to know how fast.
type TickMeter struct {
	label      time.Time // latest fix time seen
	interval   time.Duration
	started    time.Time
	ticker     *time.Ticker
	countMeter metrics.Meter
	sizeMeter  metrics.Meter
}

func NewTickMeter(interval time.Duration) *TickMeter {
	// Won't work without this global setting.
	metrics.Enabled = true

	m := &TickMeter{
		interval:   interval,
		started:    time.Now(),
		countMeter: metrics.NewMeter(),
		sizeMeter:  metrics.NewMeter(),
	}
	go m.run()
	return m
}

// Mark records one ingested fix of the given encoded size.
func (m *TickMeter) Mark(label time.Time, size int) {
	m.label = label
	m.countMeter.Mark(1)
	m.sizeMeter.Mark(int64(size))
}

func (m *TickMeter) run() {
	m.ticker = time.NewTicker(m.interval)
	for range m.ticker.C {
		m.log()
	}
}

func (m *TickMeter) log() {
	countSnap := m.countMeter.Snapshot()
	sizeSnap := m.sizeMeter.Snapshot()
	slog.Info("Read fixes", "n", humanize.Comma(countSnap.Count()),
		"read.last", m.label.Format(time.DateTime),
		"fps", common.DecimalToFixed(countSnap.Rate1(), 0),
		"bps", humanize.Bytes(uint64(sizeSnap.Rate1())),
		"total.bytes", humanize.Bytes(uint64(sizeSnap.Count())),
		"running", time.Since(m.started).Round(time.Second))
}

func (m *TickMeter) Stop() {
	if m == nil || m.ticker == nil {
		return
	}
	m.ticker.Stop()
	m.countMeter.Stop()
	m.sizeMeter.Stop()
}
