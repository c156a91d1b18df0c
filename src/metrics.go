package dmrgps

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts what happened to frames, transmissions and reports.
// A nil *Metrics is valid and counts nothing.
type Metrics struct {
	Registry *prometheus.Registry

	frames       *prometheus.CounterVec
	assemblies   *prometheus.CounterVec
	reports      *prometheus.CounterVec
	commands     *prometheus.CounterVec
	uplinks      *prometheus.CounterVec
	profiles     *prometheus.CounterVec
	queueDropped prometheus.Counter
}

func NewMetrics() *Metrics {
	var m = &Metrics{
		Registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmrgps_frames_total",
			Help: "Frames offered by the host, by outcome.",
		}, []string{"result"}),
		assemblies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmrgps_assemblies_total",
			Help: "Reassembly state changes.",
		}, []string{"result"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmrgps_reports_total",
			Help: "Position reports built, by outcome.",
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmrgps_commands_total",
			Help: "Text messages handled, by command.",
		}, []string{"command"}),
		uplinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmrgps_uplinks_total",
			Help: "Packets sent to APRS-IS, by outcome.",
		}, []string{"result"}),
		profiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmrgps_profile_writes_total",
			Help: "Profile store writes, by outcome.",
		}, []string{"result"}),
		queueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dmrgps_queue_dropped_total",
			Help: "Background jobs dropped because the queue was full.",
		}),
	}

	m.Registry.MustRegister(m.frames, m.assemblies, m.reports, m.commands, m.uplinks, m.profiles, m.queueDropped)

	return m
}

func (m *Metrics) frame(result string) {
	if m != nil {
		m.frames.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) assembly(result string) {
	if m != nil {
		m.assemblies.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) report(result string) {
	if m != nil {
		m.reports.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) command(name string) {
	if m != nil {
		m.commands.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) uplink(result string) {
	if m != nil {
		m.uplinks.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) profileWrite(result string) {
	if m != nil {
		m.profiles.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) dropped() {
	if m != nil {
		m.queueDropped.Inc()
	}
}
