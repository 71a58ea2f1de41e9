package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/golang-io/requests"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Stat struct {
	Uptime            prometheus.Counter
	PacketsSent       *prometheus.CounterVec
	PacketsReceived   *prometheus.CounterVec
	BytesSent         prometheus.Counter
	BytesReceived     prometheus.Counter
	InFlight          prometheus.Gauge
	Pings             prometheus.Counter
	KeepAliveTimeouts prometheus.Counter
	Sessions          *prometheus.GaugeVec
}

var (
	stat = Stat{
		Uptime:            prometheus.NewCounter(prometheus.CounterOpts{Name: "mqtt_client_uptime_seconds", Help: "The uptime in seconds"}),
		PacketsSent:       prometheus.NewCounterVec(prometheus.CounterOpts{Name: "mqtt_client_packets_sent_total", Help: "The total number of sent MQTT packets"}, []string{"kind"}),
		PacketsReceived:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: "mqtt_client_packets_received_total", Help: "The total number of received MQTT packets"}, []string{"kind"}),
		BytesSent:         prometheus.NewCounter(prometheus.CounterOpts{Name: "mqtt_client_bytes_sent_total", Help: "The total number of sent MQTT bytes"}),
		BytesReceived:     prometheus.NewCounter(prometheus.CounterOpts{Name: "mqtt_client_bytes_received_total", Help: "The total number of received MQTT bytes"}),
		InFlight:          prometheus.NewGauge(prometheus.GaugeOpts{Name: "mqtt_client_inflight", Help: "The number of packet identifiers held by unfinished handshakes"}),
		Pings:             prometheus.NewCounter(prometheus.CounterOpts{Name: "mqtt_client_pings_total", Help: "The total number of sent PINGREQ packets"}),
		KeepAliveTimeouts: prometheus.NewCounter(prometheus.CounterOpts{Name: "mqtt_client_keepalive_timeouts_total", Help: "The total number of sessions failed by a missing PINGRESP"}),
		Sessions:          prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "mqtt_client_sessions", Help: "The number of sessions by state"}, []string{"state"}),
	}
)

func (s *Stat) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		s.Uptime, s.PacketsSent, s.PacketsReceived, s.BytesSent, s.BytesReceived,
		s.InFlight, s.Pings, s.KeepAliveTimeouts, s.Sessions,
	}
}

// Register adds the collectors to reg. Collectors already registered there are skipped.
func (s *Stat) Register(reg prometheus.Registerer) error {
	for _, c := range s.collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// RefreshUptime increments Uptime every second until ctx is done.
func (s *Stat) RefreshUptime(ctx context.Context) {
	go func() {
		tick := time.NewTicker(time.Second)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				s.Uptime.Inc()
			}
		}
	}()
}

// transition moves one session from state from to state to in the Sessions gauge.
func (s *Stat) transition(from, to State) {
	s.Sessions.WithLabelValues(from.String()).Dec()
	s.Sessions.WithLabelValues(to.String()).Inc()
}

// RegisterMetrics registers the client metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	return stat.Register(reg)
}

func ServerLog(ctx context.Context, stat *requests.Stat) {
	b, err := json.Marshal(stat.Request.Body)
	logrus.WithContext(ctx).Debugf("%s # body=%s, resp=%v, err=%v", stat.Print(), b, stat.Response.Body, err)
}

// Httpd serves /metrics and pprof on addr until ctx is done.
func Httpd(ctx context.Context, addr string) error {
	if err := RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		return err
	}
	stat.RefreshUptime(ctx)
	mux := requests.NewServeMux(requests.URL(addr), requests.Logf(ServerLog))
	mux.Route("/metrics", promhttp.Handler())
	mux.Pprof()
	s := requests.NewServer(ctx, mux, requests.OnStart(func(s *http.Server) {
		logrus.Infof("http serve: %s", s.Addr)
	}))
	return s.ListenAndServe()
}
