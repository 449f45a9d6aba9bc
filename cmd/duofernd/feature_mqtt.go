//go:build !no_mqtt

package main

import (
	"log/slog"

	"duofernd/internal/dispatcher"
	"duofernd/internal/events"
	"duofernd/internal/frame"
	"duofernd/internal/host"
)

type mqttGateway struct {
	gw *host.Gateway
}

func (g *mqttGateway) Start(bus *events.Bus) {
	if g.gw != nil {
		g.gw.Start(bus)
	}
}

func (g *mqttGateway) Stop() {
	if g.gw != nil {
		g.gw.Stop()
	}
}

func initMQTT(disp *dispatcher.Dispatcher, dongle frame.DongleID, cfg *Config, logger *slog.Logger) *mqttGateway {
	if !cfg.MQTT.Enabled {
		return &mqttGateway{}
	}
	gw, err := host.NewGateway(disp, dongle, host.Config{
		Broker:      cfg.MQTT.Broker,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
	}, logger)
	if err != nil {
		logger.Error("mqtt gateway", "err", err)
		return &mqttGateway{}
	}
	return &mqttGateway{gw: gw}
}
