//go:build !no_mqtt

// Package host implements the thin external interface named in spec.md
// §9: the core publishes typed events and accepts command submissions;
// nothing else owns protocol semantics. This gateway translates that
// surface to MQTT topics, with no Home-Assistant discovery or per-device
// UI modeling — that belongs to a host application, not this module.
package host

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"duofernd/internal/codec"
	"duofernd/internal/events"
	"duofernd/internal/frame"
)

// defaultChannel is the "CH" byte used by every device-addressed command
// frame issued through this gateway (spec.md §4.4 worked examples all use
// channel 01; status requests override it to FF internally).
const defaultChannel = "01"

// Config holds MQTT gateway configuration.
type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
}

// Submitter is the Dispatcher surface the gateway drives.
type Submitter interface {
	Submit(f frame.Frame)
}

// command is the JSON shape accepted on "<prefix>/cmd/<device>".
type command struct {
	Command string `json:"command"`
	Level   *int   `json:"level,omitempty"`
	On      *bool  `json:"on,omitempty"`
	Name    string `json:"name,omitempty"` // automatic name, e.g. "sun"
}

// Gateway bridges the core's event bus and command submission surface to
// an MQTT broker.
type Gateway struct {
	client pahomqtt.Client
	disp   Submitter
	dongle frame.DongleID
	prefix string
	logger *slog.Logger

	mu    sync.Mutex
	unsub func()
}

// NewGateway connects to the broker and returns a Gateway ready for
// Start.
func NewGateway(disp Submitter, dongle frame.DongleID, cfg Config, logger *slog.Logger) (*Gateway, error) {
	g := &Gateway{
		disp:   disp,
		dongle: dongle,
		prefix: cfg.TopicPrefix,
		logger: logger.With("component", "mqtt"),
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("duofernd").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(cfg.TopicPrefix+"/bridge/state", "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			g.logger.Info("mqtt connected")
			g.publishBridgeState("online")
			g.subscribeCommands()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			g.logger.Warn("mqtt connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("host: mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("host: mqtt connect: %w", err)
	}

	g.client = client
	return g, nil
}

// Start subscribes the gateway to every core event.
func (g *Gateway) Start(bus *events.Bus) {
	g.mu.Lock()
	g.unsub = bus.OnAll(g.handleEvent)
	g.mu.Unlock()
	g.logger.Info("mqtt gateway started", "prefix", g.prefix)
}

// Stop publishes the offline bridge state, unsubscribes, and disconnects.
func (g *Gateway) Stop() {
	g.mu.Lock()
	unsub := g.unsub
	g.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	g.publishBridgeState("offline")
	g.client.Disconnect(1000)
	g.logger.Info("mqtt gateway stopped")
}

func (g *Gateway) handleEvent(e events.Event) {
	switch e.Kind {
	case events.KindStatus:
		g.publish(g.prefix+"/status/"+e.DeviceCode, mustJSON(e.Fields), true)
	case events.KindPaired:
		g.publish(g.prefix+"/paired/"+e.DeviceCode, []byte("true"), true)
	case events.KindUnpaired:
		g.publish(g.prefix+"/paired/"+e.DeviceCode, []byte("false"), true)
	case events.KindError:
		g.publish(g.prefix+"/bridge/error", mustJSON(map[string]string{"kind": e.ErrKind, "detail": e.Detail}), false)
	case events.KindOpened, events.KindInitialized, events.KindClosed:
		g.publishBridgeState(string(e.Kind))
	}
}

func (g *Gateway) publishBridgeState(state string) {
	g.publish(g.prefix+"/bridge/state", []byte(state), true)
}

func (g *Gateway) subscribeCommands() {
	topic := g.prefix + "/cmd/+"
	g.client.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		g.handleCommand(msg.Topic(), msg.Payload())
	})
}

func (g *Gateway) handleCommand(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	deviceRaw := parts[len(parts)-1]
	device, err := frame.ParseDeviceCode(deviceRaw)
	if err != nil {
		g.logger.Warn("host: command topic has invalid device code", "topic", topic, "err", err)
		return
	}

	var cmd command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		g.logger.Warn("host: invalid command payload", "device", device, "err", err)
		return
	}

	f, err := g.buildFrame(cmd, device)
	if err != nil {
		g.logger.Warn("host: cannot build command frame", "device", device, "command", cmd.Command, "err", err)
		return
	}
	g.disp.Submit(f)
}

func (g *Gateway) buildFrame(cmd command, device frame.DeviceCode) (frame.Frame, error) {
	switch cmd.Command {
	case "up", "down", "stop", "toggle", "sunModeOn", "sunModeOff", "windModeOn", "windModeOff", "rainModeOn", "rainModeOff":
		return codec.BuildCommand(cmd.Command, defaultChannel, g.dongle, device)
	case "position", "slatPosition", "sunPosition", "ventilatingPosition":
		if cmd.Level == nil {
			return frame.Frame{}, fmt.Errorf("host: command %q requires level", cmd.Command)
		}
		return codec.BuildLevelCommand(cmd.Command, defaultChannel, g.dongle, device, *cmd.Level)
	case "automatic":
		if cmd.On == nil {
			return frame.Frame{}, fmt.Errorf("host: command automatic requires on")
		}
		return codec.BuildAutomatic(cmd.Name, *cmd.On, defaultChannel, g.dongle, device)
	case "ventilatingMode":
		if cmd.On == nil {
			return frame.Frame{}, fmt.Errorf("host: command ventilatingMode requires on")
		}
		return codec.BuildVentilatingMode(*cmd.On, defaultChannel, g.dongle, device)
	case "statusRequest":
		return codec.BuildStatusRequest(device)
	default:
		return frame.Frame{}, fmt.Errorf("host: unknown command %q", cmd.Command)
	}
}

func (g *Gateway) publish(topic string, payload []byte, retained bool) {
	token := g.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			g.logger.Warn("mqtt publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			g.logger.Warn("mqtt publish error", "topic", topic, "err", err)
		}
	}()
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
