// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/route_tracker/internal/tracker"
	"github.com/relabs-tech/route_tracker/internal/view"
)

// MQTTPublisher is the part of mqtt.Client used for publishing.
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher forwards progress and overlays to MQTT. Overlays are retained
// so a late subscriber gets the current map.
type Publisher struct {
	client        MQTTPublisher
	topicProgress string
	topicOverlay  string
}

func NewPublisher(client MQTTPublisher, topicProgress, topicOverlay string) *Publisher {
	return &Publisher{client: client, topicProgress: topicProgress, topicOverlay: topicOverlay}
}

func (p *Publisher) PublishProgress(pr tracker.Progress) {
	p.publish(p.topicProgress, false, pr)
}

func (p *Publisher) PublishOverlay(o view.Overlay) {
	p.publish(p.topicOverlay+"/"+o.Kind, true, o)
}

// PublishAnimate is a no-op: camera moves only matter to live maps.
func (p *Publisher) PublishAnimate(view.AnimateCommand) {}

func (p *Publisher) publish(topic string, retained bool, v any) {
	if topic == "" {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("mqtt: json marshal error: %v", err)
		return
	}
	token := p.client.Publish(topic, 0, retained, payload)
	token.Wait()
	if token.Error() != nil {
		log.Printf("mqtt: publish %s error: %v", topic, token.Error())
	}
}
