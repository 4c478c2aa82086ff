// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/relabs-tech/route_tracker/internal/gps"
)

// subackFailure is the SUBACK return code for a refused subscription.
const subackFailure = 0x80

// MQTTClient is the part of mqtt.Client the source uses.
type MQTTClient interface {
	IsConnected() bool
	Connect() mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// MQTTSource reads JSON gps.Fix messages from a topic, as published by
// the GPS producer.
type MQTTSource struct {
	client MQTTClient
	topic  string
	qos    byte

	mu     sync.Mutex
	active bool
}

// NewMQTTSource subscribes to topic on client at QoS 0.
func NewMQTTSource(client MQTTClient, topic string) *MQTTSource {
	return &MQTTSource{client: client, topic: topic}
}

// RequestPermission connects to the broker if needed. A broker refusing
// the credentials yields ErrPermissionDenied.
func (s *MQTTSource) RequestPermission(context.Context) error {
	if s.client.IsConnected() {
		return nil
	}
	token := s.client.Connect()
	if token.Wait() && token.Error() != nil {
		return mapConnectError(token.Error())
	}
	return nil
}

func mapConnectError(err error) error {
	if errors.Is(err, packets.ErrorRefusedNotAuthorised) || errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return fmt.Errorf("mqtt connect: %w", err)
}

// CurrentPosition waits for the next fix on the topic. The GPS producer
// publishes retained, so a fresh subscription gets the latest fix at once.
func (s *MQTTSource) CurrentPosition(ctx context.Context) (gps.Fix, error) {
	if err := s.RequestPermission(ctx); err != nil {
		return gps.Fix{}, err
	}
	s.mu.Lock()
	busy := s.active
	s.mu.Unlock()
	if busy {
		return gps.Fix{}, fmt.Errorf("mqtt: %s already watched", s.topic)
	}

	fixes := make(chan gps.Fix, 1)
	if err := s.subscribe(func(f gps.Fix) {
		select {
		case fixes <- f:
		default:
		}
	}); err != nil {
		return gps.Fix{}, err
	}
	defer s.client.Unsubscribe(s.topic).Wait()

	select {
	case f := <-fixes:
		return f, nil
	case <-ctx.Done():
		return gps.Fix{}, ctx.Err()
	}
}

// Watch subscribes to the fix topic. Only one watch per source is allowed
// since MQTT routes by topic.
func (s *MQTTSource) Watch(ctx context.Context, opts WatchOptions, h Handler) (Subscription, error) {
	if err := s.RequestPermission(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return nil, fmt.Errorf("mqtt: %s already watched", s.topic)
	}
	s.active = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	g := newGate(opts, nil)
	var deliver sync.Mutex

	err := s.subscribe(func(f gps.Fix) {
		deliver.Lock()
		defer deliver.Unlock()
		if ctx.Err() != nil || !g.allow(f) {
			return
		}
		h(f)
	})
	if err != nil {
		cancel()
		s.release()
		return nil, err
	}

	sub := &cancelSubscription{cancel: cancel}
	sub.cleanup = func() {
		if t := s.client.Unsubscribe(s.topic); t.Wait() && t.Error() != nil {
			log.Printf("mqtt: unsubscribe %s: %v", s.topic, t.Error())
		}
		// wait out a delivery in flight
		deliver.Lock()
		deliver.Unlock()
		s.release()
	}
	return sub, nil
}

func (s *MQTTSource) release() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

func (s *MQTTSource) subscribe(fn func(gps.Fix)) error {
	token := s.client.Subscribe(s.topic, s.qos, func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("mqtt: fix unmarshal error: %v", err)
			return
		}
		if !f.Valid() {
			return
		}
		fn(f)
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", s.topic, token.Error())
	}
	if st, ok := token.(*mqtt.SubscribeToken); ok {
		if st.Result()[s.topic] == subackFailure {
			return fmt.Errorf("%w: subscription to %s refused", ErrPermissionDenied, s.topic)
		}
	}
	return nil
}
