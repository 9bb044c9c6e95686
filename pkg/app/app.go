package app

import (
	"context"
	"sync"
	"time"

	"github.com/nergy-se/ratecontroller/pkg/alarm"
	"github.com/nergy-se/ratecontroller/pkg/api/v1/config"
	"github.com/nergy-se/ratecontroller/pkg/metrics"
	"github.com/nergy-se/ratecontroller/pkg/mqtt"
	"github.com/nergy-se/ratecontroller/pkg/price"
	"github.com/nergy-se/ratecontroller/pkg/selfupdate"
	"github.com/nergy-se/ratecontroller/pkg/servicemanager"
	"github.com/nergy-se/ratecontroller/pkg/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type Publisher interface {
	Publish(state.Snapshot) error
}

type App struct {
	wg        *sync.WaitGroup
	config    *config.CliConfig
	services  servicemanager.Manager
	prices    *price.Client
	updater   *selfupdate.Updater
	metrics   *metrics.Metrics
	alarms    *alarm.ActiveAlarms
	publisher Publisher

	// owned by controllerLoop
	state    state.ControlState
	interval time.Duration
}

func New(config *config.CliConfig, services servicemanager.Manager) *App {
	return &App{
		wg:       &sync.WaitGroup{},
		config:   config,
		services: services,
		prices:   price.NewClient(),
		updater:  selfupdate.New(config.RepoPath),
		metrics:  metrics.New(prometheus.NewRegistry()),
		alarms:   alarm.New(),
	}
}

func (a *App) Start(ctx context.Context) error {
	if a.config.MetricsListen != "" {
		err := a.metrics.Serve(ctx, a.wg, a.config.MetricsListen)
		if err != nil {
			return err
		}
	}

	if a.config.MqttListen != "" {
		broker, err := mqtt.Start(ctx, a.wg, a.config.MqttListen, a.config.MqttTopic)
		if err != nil {
			return err
		}
		a.publisher = broker
	}

	a.wg.Add(1)
	go a.controllerLoop(ctx)
	return nil
}

func (a *App) Wait() {
	a.wg.Wait()
}

func (a *App) controllerLoop(ctx context.Context) {
	defer a.wg.Done()
	for {
		delay := a.tick(ctx)
		logrus.Debug("scheduling next run in ", delay)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// tick runs one iteration and returns how long to sleep before the next.
func (a *App) tick(ctx context.Context) time.Duration {
	cfg, err := config.Load(a.config.ConfigPath())
	if err != nil {
		a.metrics.ConfigErrors.Inc()
		a.raise("config", err)
		return a.retryDelay()
	}
	a.clear("config")
	a.interval = cfg.Interval()

	if res := a.updater.Pull(cfg.GitPull); res.Status == selfupdate.Updated {
		logrus.Info("selfupdate: pulled new revision, restart to run it")
	}

	sample, err := a.prices.Sample(ctx, cfg.ComedAPIURL)
	if err != nil {
		if ctx.Err() != nil {
			return a.interval
		}
		a.metrics.FeedErrors.Inc()
		a.raise("feed", err)
		return a.interval
	}
	a.clear("feed")

	a.reconcile(ctx, cfg, sample.Price)
	return a.interval
}

func (a *App) reconcile(ctx context.Context, cfg *config.Config, current float64) {
	action := state.Decide(current, cfg.RateLimit, a.state)
	switch action {
	case state.ActionStop:
		logrus.Warnf("disabling, rate is %.1f cents per kWh, and limit is %g", current, cfg.RateLimit)
	case state.ActionStart:
		logrus.Warnf("enabling, rate is %.1f cents per kWh, and limit is %g", current, cfg.RateLimit)
	}

	if action != state.ActionNone {
		err := servicemanager.Control(ctx, a.services, cfg.Services, action, a.config.ServiceDelay)
		switch {
		case ctx.Err() != nil:
			logrus.Debugf("service %s interrupted by shutdown", action)
		case err != nil:
			a.metrics.ServiceErrors.WithLabelValues(action.String()).Inc()
			if a.alarms.Raise("services", err.Error()) {
				logrus.WithField("alarm", "services").Warnf("service control failing")
			}
		default:
			a.clear("services")
		}
		a.state = action.Target(a.state)
		a.metrics.Transitions.WithLabelValues(a.state.String()).Inc()
	}

	snapshot := state.Snapshot{
		Time:      time.Now(),
		Price:     current,
		RateLimit: cfg.RateLimit,
		State:     a.state,
		Services:  cfg.Services,
	}
	logrus.WithFields(logrus.Fields(snapshot.Map())).Debug("reconciled")
	a.metrics.Observe(snapshot)
	if a.publisher != nil {
		if err := a.publisher.Publish(snapshot); err != nil {
			logrus.Errorf("error publishing snapshot: %s", err)
		}
	}
}

func (a *App) raise(name string, err error) {
	entry := logrus.WithField("alarm", name)
	if a.alarms.Raise(name, err.Error()) {
		entry.Errorf("alarm raised: %s", err)
		return
	}
	entry.Error(err)
}

func (a *App) clear(name string) {
	if a.alarms.Clear(name) {
		logrus.WithField("alarm", name).Info("alarm cleared")
	}
}
