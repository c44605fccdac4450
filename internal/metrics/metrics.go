// Package metrics holds the gateway's own operational counters and
// gauges, exposed over HTTP for scraping rather than pushed anywhere.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsOpen is the number of currently connected IP-T sessions.
	SessionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "smf_gateway",
		Name:      "ipt_sessions_open",
		Help:      "Number of currently connected IP-T sessions.",
	})

	// FramesParsed counts successfully decoded IP-T frames, by command.
	FramesParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smf_gateway",
		Name:      "ipt_frames_parsed_total",
		Help:      "Number of IP-T frames successfully decoded, by command tag.",
	}, []string{"command"})

	// FrameErrors counts frame/CRC/checksum failures, by source.
	FrameErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smf_gateway",
		Name:      "frame_errors_total",
		Help:      "Number of malformed frames or checksum mismatches, by source protocol.",
	}, []string{"source"})

	// PushChannelBytes counts bytes relayed through push channels.
	PushChannelBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smf_gateway",
		Name:      "push_channel_bytes_total",
		Help:      "Bytes transferred through push channels, by direction.",
	}, []string{"direction"})

	// ReadoutsPersisted counts readouts written to the repository, by
	// source protocol.
	ReadoutsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smf_gateway",
		Name:      "readouts_persisted_total",
		Help:      "Number of readouts successfully persisted, by source protocol.",
	}, []string{"source"})
)
