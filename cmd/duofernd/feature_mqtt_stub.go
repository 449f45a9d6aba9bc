//go:build no_mqtt

package main

import (
	"log/slog"

	"duofernd/internal/dispatcher"
	"duofernd/internal/events"
	"duofernd/internal/frame"
)

type mqttGateway struct{}

func (g *mqttGateway) Start(_ *events.Bus) {}

func (g *mqttGateway) Stop() {}

func initMQTT(_ *dispatcher.Dispatcher, _ frame.DongleID, _ *Config, _ *slog.Logger) *mqttGateway {
	return &mqttGateway{}
}
