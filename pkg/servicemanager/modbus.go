package servicemanager

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/nergy-se/ratecontroller/pkg/modbusclient"
)

const ModbusScheme = "modbus"

// Coil identifies a relay coil, written as modbus://host:port/<coil>?slave=<id>.
type Coil struct {
	Address string
	SlaveID byte
	Coil    uint16
}

func ParseCoil(service string) (Coil, error) {
	u, err := url.Parse(service)
	if err != nil {
		return Coil{}, fmt.Errorf("error parsing modbus service %q: %w", service, err)
	}
	if u.Scheme != ModbusScheme {
		return Coil{}, fmt.Errorf("modbus service %q: unexpected scheme %q", service, u.Scheme)
	}
	if u.Host == "" {
		return Coil{}, fmt.Errorf("modbus service %q: missing host", service)
	}
	host := u.Host
	if u.Port() == "" {
		host += ":502"
	}

	coil, err := strconv.ParseUint(strings.TrimLeft(u.Path, "/"), 10, 16)
	if err != nil {
		return Coil{}, fmt.Errorf("modbus service %q: invalid coil: %w", service, err)
	}

	var slave uint64 = 1
	if s := u.Query().Get("slave"); s != "" {
		slave, err = strconv.ParseUint(s, 10, 8)
		if err != nil {
			return Coil{}, fmt.Errorf("modbus service %q: invalid slave: %w", service, err)
		}
	}

	return Coil{Address: host, SlaveID: byte(slave), Coil: uint16(coil)}, nil
}

// Modbus switches relay coils. One client is kept per address and slave.
type Modbus struct {
	clients map[string]modbusclient.Client
	dial    func(address string, slaveID byte) modbusclient.Client
	mutex   *sync.Mutex
}

func NewModbus() *Modbus {
	return &Modbus{
		clients: make(map[string]modbusclient.Client),
		dial: func(address string, slaveID byte) modbusclient.Client {
			return modbusclient.Dial(address, slaveID)
		},
		mutex: &sync.Mutex{},
	}
}

func (m *Modbus) client(c Coil) modbusclient.Client {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	key := fmt.Sprintf("%s/%d", c.Address, c.SlaveID)
	if cl, ok := m.clients[key]; ok {
		return cl
	}
	cl := m.dial(c.Address, c.SlaveID)
	m.clients[key] = cl
	return cl
}

// Close closes every dialed client. Clients are dialed again on next use.
func (m *Modbus) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	var errs []error
	for key, cl := range m.clients {
		if err := cl.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing modbus client %s: %w", key, err))
		}
		delete(m.clients, key)
	}
	return errors.Join(errs...)
}

func (m *Modbus) write(service string, on bool) error {
	c, err := ParseCoil(service)
	if err != nil {
		return err
	}
	return m.client(c).WriteCoil(c.Coil, on)
}

func (m *Modbus) Start(ctx context.Context, service string) error {
	return m.write(service, true)
}

func (m *Modbus) Stop(ctx context.Context, service string) error {
	return m.write(service, false)
}
