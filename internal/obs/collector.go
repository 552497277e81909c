package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mbn"

var (
	descFrames = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "codec", "frames_total"),
		"Total number of frames decoded.",
		[]string{"rtype"}, nil,
	)
	descFrameBytes = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "codec", "frame_bytes_total"),
		"Total number of frame bytes decoded.",
		nil, nil,
	)
	descErrors = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "codec", "errors_total"),
		"Total number of decode failures.",
		[]string{"kind"}, nil,
	)
	descDecodeSeconds = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "codec", "decode_duration_seconds"),
		"Frame decode latency.",
		nil, nil,
	)
	descQueueDrops = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "recorder", "queue_drops_total"),
		"Total number of records dropped by a full recorder queue.",
		nil, nil,
	)
	descSegments = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "recorder", "segments_total"),
		"Total number of container segments opened.",
		nil, nil,
	)
)

// Collector exposes Metrics to a prometheus registry.
type Collector struct {
	m *Metrics
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(m *Metrics) *Collector {
	return &Collector{m: m}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descFrames
	ch <- descFrameBytes
	ch <- descErrors
	ch <- descDecodeSeconds
	ch <- descQueueDrops
	ch <- descSegments
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.m.Snapshot()
	for rtype, v := range snap.FrameCounts {
		ch <- prometheus.MustNewConstMetric(descFrames, prometheus.CounterValue, float64(v), rtype.String())
	}
	ch <- prometheus.MustNewConstMetric(descFrameBytes, prometheus.CounterValue, float64(snap.FrameBytes))
	for kind, v := range snap.ErrorCounts {
		ch <- prometheus.MustNewConstMetric(descErrors, prometheus.CounterValue, float64(v), kind.String())
	}
	ch <- prometheus.MustNewConstSummary(descDecodeSeconds,
		snap.DecodeLatency.Count, snap.DecodeLatency.Sum.Seconds(), nil)
	ch <- prometheus.MustNewConstMetric(descQueueDrops, prometheus.CounterValue, float64(snap.QueueDrops))
	ch <- prometheus.MustNewConstMetric(descSegments, prometheus.CounterValue, float64(snap.Segments))
}

// Register registers a collector for m with reg, or the default registerer when reg is nil.
func Register(reg prometheus.Registerer, m *Metrics) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return reg.Register(NewCollector(m))
}
