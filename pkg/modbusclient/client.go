package modbusclient

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/goburrow/modbus"
	"github.com/sirupsen/logrus"
)

type Client interface {
	WriteCoil(address uint16, on bool) error
	Close() error
}

type client struct {
	client modbus.Client
	close  func() error
}

func New(c modbus.Client, close func() error) *client {
	return &client{
		client: c,
		close:  close,
	}
}

// Dial returns a client for a Modbus TCP relay. The connection is opened on first use.
func Dial(address string, slaveID byte) *client {
	handler := modbus.NewTCPClientHandler(address)
	handler.SlaveId = slaveID
	return New(modbus.NewClient(handler), handler.Close)
}

// closeIfNeeded drops the connection on errors the handler does not recover from by itself.
// goburrow reconnects on next request.
func (c *client) closeIfNeeded(e error) {
	if e == nil {
		return
	}

	var reason string
	switch {
	case errors.Is(e, syscall.EPIPE):
		reason = "broken pipe"
	case errors.Is(e, syscall.ECONNRESET):
		reason = "connection reset"
	case errors.Is(e, os.ErrDeadlineExceeded):
		reason = "i/o timeout"
	default:
		return
	}

	logrus.Warnf("modbus: reconnect due to %s", reason)
	if err := c.close(); err != nil {
		logrus.Errorf("modbus: error closing client: %s", err)
	}
}

func (c *client) WriteCoil(address uint16, on bool) error {
	value := CoilValue(on)
	_, err := c.client.WriteSingleCoil(address, value)
	if err != nil {
		c.closeIfNeeded(err)
		return fmt.Errorf("error writing coil %d value %#x: %w", address, value, err)
	}
	return nil
}

func (c *client) Close() error {
	return c.close()
}

func CoilValue(b bool) uint16 {
	if b {
		return WriteCoilValueOn
	}
	return WriteCoilValueOff
}

const (
	WriteCoilValueOn  uint16 = 0xff00
	WriteCoilValueOff uint16 = 0
)
