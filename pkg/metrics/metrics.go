package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nergy-se/ratecontroller/pkg/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const namespace = "ratecontroller"

type Metrics struct {
	Price         prometheus.Gauge
	RateLimit     prometheus.Gauge
	ControlState  prometheus.Gauge
	Transitions   *prometheus.CounterVec
	FeedErrors    prometheus.Counter
	ServiceErrors *prometheus.CounterVec
	ConfigErrors  prometheus.Counter

	gatherer prometheus.Gatherer
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Price: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "price_cents",
			Help:      "Last computed average price in cents per kWh.",
		}),
		RateLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limit_cents",
			Help:      "Configured price threshold in cents per kWh.",
		}),
		ControlState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "control_state",
			Help:      "0 unknown, 1 enabled, 2 disabled.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "State transitions by resulting state.",
		}, []string{"state"}),
		FeedErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_errors_total",
			Help:      "Failed price feed requests.",
		}),
		ServiceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_errors_total",
			Help:      "Failed service start/stop batches.",
		}, []string{"action"}),
		ConfigErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_errors_total",
			Help:      "Failed rate file loads.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.Price,
		m.RateLimit,
		m.ControlState,
		m.Transitions,
		m.FeedErrors,
		m.ServiceErrors,
		m.ConfigErrors,
	)
	return m
}

func (m *Metrics) Observe(s state.Snapshot) {
	m.Price.Set(s.Price)
	m.RateLimit.Set(s.RateLimit)
	m.ControlState.Set(float64(s.State))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on address until ctx is done.
func (m *Metrics) Serve(ctx context.Context, wg *sync.WaitGroup, address string) error {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		err := srv.Serve(l)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("metrics: %s", err)
		}
	}()
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.Errorf("metrics: error shutting down: %s", err)
		}
	}()
	logrus.Infof("metrics: listening on %s", l.Addr())
	return nil
}
