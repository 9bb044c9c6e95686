package servicemanager

import (
	"context"
	"fmt"
	"sync"

	"github.com/coreos/go-systemd/v22/dbus"
)

type unitConn interface {
	StartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	Close()
}

// Systemd talks to the system bus. The connection is opened on first use and dropped after a
// failed call so the next call reconnects.
type Systemd struct {
	conn  unitConn
	dial  func(ctx context.Context) (unitConn, error)
	mutex *sync.Mutex
}

func NewSystemd() *Systemd {
	return &Systemd{
		dial: func(ctx context.Context) (unitConn, error) {
			return dbus.NewSystemConnectionContext(ctx)
		},
		mutex: &sync.Mutex{},
	}
}

func (s *Systemd) init(ctx context.Context) (unitConn, error) {
	if s.conn != nil {
		return s.conn, nil
	}
	c, err := s.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("error connecting to systemd: %w", err)
	}
	s.conn = c
	return c, nil
}

func (s *Systemd) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	return nil
}

func (s *Systemd) Start(ctx context.Context, unit string) error {
	return s.do(ctx, unit, "StartUnit", func(c unitConn) (int, error) {
		return c.StartUnitContext(ctx, unit, JobMode, nil)
	})
}

func (s *Systemd) Stop(ctx context.Context, unit string) error {
	return s.do(ctx, unit, "StopUnit", func(c unitConn) (int, error) {
		return c.StopUnitContext(ctx, unit, JobMode, nil)
	})
}

// do queues the job without waiting for it to finish.
func (s *Systemd) do(ctx context.Context, unit, method string, fn func(unitConn) (int, error)) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	c, err := s.init(ctx)
	if err != nil {
		return err
	}
	_, err = fn(c)
	if err != nil {
		c.Close()
		s.conn = nil
		return fmt.Errorf("error calling %s %s: %w", method, unit, err)
	}
	return nil
}
