// Package metrics exposes node counters in Prometheus format.
// Nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/dustnet/dustnet/log2"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons.
const (
	DropMalformed    = "malformed"
	DropChecksum     = "checksum"
	DropUnknownTag   = "unknown_tag"
	DropRegistryFull = "registry_full"
	DropUnexpected   = "unexpected"
	DropHostTime     = "host_time"
)

type Metrics struct {
	reg *prometheus.Registry

	FramesIn       *prometheus.CounterVec
	FramesOut      *prometheus.CounterVec
	Dropped        *prometheus.CounterVec
	Identities     prometheus.Counter
	Records        prometheus.Counter
	RegistrySize   prometheus.Gauge
	Samples        prometheus.Counter
	UplinkErrors   prometheus.Counter
	ForwardPending prometheus.Gauge
}

func New(role string) *Metrics {
	labels := prometheus.Labels{"role": role}
	self := &Metrics{
		reg: prometheus.NewRegistry(),
		FramesIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dustnet_frames_received_total",
			Help:        "Radio frames received, by message tag.",
			ConstLabels: labels,
		}, []string{"tag"}),
		FramesOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dustnet_frames_sent_total",
			Help:        "Radio frames sent, by message tag.",
			ConstLabels: labels,
		}, []string{"tag"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "dustnet_dropped_total",
			Help:        "Inbound frames or commands ignored, by reason.",
			ConstLabels: labels,
		}, []string{"reason"}),
		Identities: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dustnet_identities_assigned_total",
			Help:        "New leaf identities issued by gateway.",
			ConstLabels: labels,
		}),
		Records: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dustnet_records_total",
			Help:        "Telemetry records written to uplink.",
			ConstLabels: labels,
		}),
		RegistrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "dustnet_registry_size",
			Help:        "Known leaf nodes.",
			ConstLabels: labels,
		}),
		Samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dustnet_samples_total",
			Help:        "Sensor samples acquired by leaf.",
			ConstLabels: labels,
		}),
		UplinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dustnet_uplink_errors_total",
			Help:        "Failed uplink writes.",
			ConstLabels: labels,
		}),
		ForwardPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "dustnet_forward_pending",
			Help:        "Records waiting in telemetry spool.",
			ConstLabels: labels,
		}),
	}
	self.reg.MustRegister(
		self.FramesIn, self.FramesOut, self.Dropped,
		self.Identities, self.Records, self.RegistrySize,
		self.Samples, self.UplinkErrors, self.ForwardPending,
	)
	return self
}

func (self *Metrics) Registry() *prometheus.Registry { return self.reg }

func (self *Metrics) FrameIn(tag string) {
	if self != nil {
		self.FramesIn.WithLabelValues(tag).Inc()
	}
}

func (self *Metrics) FrameOut(tag string) {
	if self != nil {
		self.FramesOut.WithLabelValues(tag).Inc()
	}
}

func (self *Metrics) Drop(reason string) {
	if self != nil {
		self.Dropped.WithLabelValues(reason).Inc()
	}
}

func (self *Metrics) IdentityAssigned(registrySize int) {
	if self != nil {
		self.Identities.Inc()
		self.RegistrySize.Set(float64(registrySize))
	}
}

func (self *Metrics) SetRegistrySize(n int) {
	if self != nil {
		self.RegistrySize.Set(float64(n))
	}
}

func (self *Metrics) RecordsOut(n int) {
	if self != nil {
		self.Records.Add(float64(n))
	}
}

func (self *Metrics) Sample() {
	if self != nil {
		self.Samples.Inc()
	}
}

func (self *Metrics) UplinkError() {
	if self != nil {
		self.UplinkErrors.Inc()
	}
}

func (self *Metrics) SetForwardPending(n int) {
	if self != nil {
		self.ForwardPending.Set(float64(n))
	}
}

func (self *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(self.reg, promhttp.HandlerOpts{})
}

// Serve runs HTTP endpoint /metrics until ctx is done.
func (self *Metrics) Serve(ctx context.Context, log *log2.Log, listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", self.Handler())
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()
	log.Infof("metrics listen=%s", listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Annotatef(err, "metrics listen=%s", listen)
	}
	return nil
}
