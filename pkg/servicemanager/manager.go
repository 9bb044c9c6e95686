package servicemanager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nergy-se/ratecontroller/pkg/api/v1/types"
	"github.com/nergy-se/ratecontroller/pkg/state"
	"github.com/sirupsen/logrus"
)

// JobMode is the systemd job mode used for every start and stop.
const JobMode = "replace"

type Manager interface {
	Start(ctx context.Context, service string) error
	Stop(ctx context.Context, service string) error
}

// Control issues action for every service in order, waiting delay between consecutive calls.
// Failures are logged and collected; the remaining services are still processed.
func Control(ctx context.Context, m Manager, services []string, action state.Action, delay time.Duration) error {
	var errs []error
	for i, service := range services {
		if i > 0 && delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				return errors.Join(append(errs, err)...)
			}
		}

		var err error
		switch action {
		case state.ActionStart:
			logrus.Infof("Starting service: %s", service)
			err = m.Start(ctx, service)
		case state.ActionStop:
			logrus.Infof("Stopping service: %s", service)
			err = m.Stop(ctx, service)
		default:
			return fmt.Errorf("unsupported action %s", action)
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{"service": service, "action": action.String()}).Error(err)
			errs = append(errs, fmt.Errorf("%s %s: %w", action, service, err))
		}
	}
	return errors.Join(errs...)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Mux routes modbus:// identifiers to the coil backend and everything else to units.
type Mux struct {
	Units Manager
	Coils Manager
}

func (m *Mux) route(service string) (Manager, error) {
	if strings.HasPrefix(service, ModbusScheme+"://") {
		if m.Coils == nil {
			return nil, fmt.Errorf("no modbus backend configured for %s", service)
		}
		return m.Coils, nil
	}
	if m.Units == nil {
		return nil, fmt.Errorf("no unit backend configured for %s", service)
	}
	return m.Units, nil
}

func (m *Mux) Start(ctx context.Context, service string) error {
	b, err := m.route(service)
	if err != nil {
		return err
	}
	return b.Start(ctx, service)
}

func (m *Mux) Stop(ctx context.Context, service string) error {
	b, err := m.route(service)
	if err != nil {
		return err
	}
	return b.Stop(ctx, service)
}

type DryRun struct{}

func (DryRun) Start(ctx context.Context, service string) error {
	logrus.Infof("dryrun: StartUnit %s %s", service, JobMode)
	return nil
}

func (DryRun) Stop(ctx context.Context, service string) error {
	logrus.Infof("dryrun: StopUnit %s %s", service, JobMode)
	return nil
}

// New returns the unit backend named by kind wrapped in a Mux with a modbus coil backend.
func New(kind types.ServiceManagerType) (*Mux, error) {
	mux := &Mux{Coils: NewModbus()}
	switch kind {
	case "", types.ServiceManagerTypeSystemd:
		mux.Units = NewSystemd()
	case types.ServiceManagerTypeDryRun:
		mux.Units = DryRun{}
	default:
		return nil, fmt.Errorf("unknown service manager %q", kind)
	}
	return mux, nil
}

// Close releases backends holding a connection.
func (m *Mux) Close() error {
	var errs []error
	for _, b := range []Manager{m.Units, m.Coils} {
		if c, ok := b.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
