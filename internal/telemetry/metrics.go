// Package telemetry registers the Prometheus metrics of the director.
package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	OBSRequests        *prometheus.CounterVec
	OBSRequestDuration *prometheus.HistogramVec
	SceneSwitches      *prometheus.CounterVec
	RelayPolls         *prometheus.CounterVec

	OBSConnected   prometheus.Gauge
	RelayConnected prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		OBSRequests = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chessobs_obs_requests_total", Help: "OBS websocket requests by type and outcome"}, []string{"type", "outcome"})
		OBSRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "chessobs_obs_request_duration_seconds", Help: "OBS websocket request round trip seconds", Buckets: prometheus.DefBuckets}, []string{"type"})
		SceneSwitches = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chessobs_scene_switches_total", Help: "Scene switch attempts by outcome"}, []string{"outcome"})
		RelayPolls = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chessobs_relay_polls_total", Help: "Relay polls by feed and outcome"}, []string{"feed", "outcome"})
		OBSConnected = promauto.NewGauge(prometheus.GaugeOpts{Name: "chessobs_obs_connected", Help: "OBS connection state connected=1 disconnected=0"})
		RelayConnected = promauto.NewGauge(prometheus.GaugeOpts{Name: "chessobs_relay_connected", Help: "Relay connection state connected=1 disconnected=0"})
	})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveOBSRequest matches the obsws.Options.OnRequest signature.
func ObserveOBSRequest(requestType string, elapsed time.Duration, err error) {
	if OBSRequests != nil {
		OBSRequests.WithLabelValues(requestType, outcome(err)).Inc()
	}
	if OBSRequestDuration != nil {
		OBSRequestDuration.WithLabelValues(requestType).Observe(elapsed.Seconds())
	}
}

// RecordSwitch counts a switch under outcome (confirmed, already_active, stale, or an error code).
func RecordSwitch(outcome string) {
	if SceneSwitches != nil {
		SceneSwitches.WithLabelValues(outcome).Inc()
	}
}

func RecordPoll(feed string, err error) {
	if RelayPolls != nil {
		RelayPolls.WithLabelValues(feed, outcome(err)).Inc()
	}
}

func SetOBSConnected(v bool)   { setGauge(OBSConnected, v) }
func SetRelayConnected(v bool) { setGauge(RelayConnected, v) }

func setGauge(g prometheus.Gauge, v bool) {
	if g == nil {
		return
	}
	if v {
		g.Set(1)
	} else {
		g.Set(0)
	}
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
