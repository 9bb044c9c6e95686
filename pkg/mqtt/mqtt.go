package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mqttv2 "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/nergy-se/ratecontroller/pkg/state"
	"github.com/sirupsen/logrus"
)

// Broker is an embedded MQTT server. The controller publishes its snapshot to it with the
// inline client so local consumers can subscribe without an external broker.
type Broker struct {
	server *mqttv2.Server
	topic  string
}

// Start serves on address until ctx is done. An empty address only enables the inline client.
func Start(ctx context.Context, wg *sync.WaitGroup, address, topic string) (*Broker, error) {
	server := mqttv2.New(&mqttv2.Options{
		InlineClient: true,
	})

	// Allow all connections.
	err := server.AddHook(new(auth.AllowHook), nil)
	if err != nil {
		return nil, err
	}

	if address != "" {
		tcp := listeners.NewTCP(listeners.Config{ID: "t1", Address: address})
		err = server.AddListener(tcp)
		if err != nil {
			return nil, fmt.Errorf("error adding mqtt listener %s: %w", address, err)
		}
	}

	err = server.Serve()
	if err != nil {
		return nil, err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		server.Close()
	}()
	return &Broker{server: server, topic: topic}, nil
}

// Publish sends s as a retained message.
func (b *Broker) Publish(s state.Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	logrus.Debugf("mqtt: publish %s %s", b.topic, payload)
	return b.server.Publish(b.topic, payload, true, 0)
}

func (b *Broker) Server() *mqttv2.Server {
	return b.server
}
