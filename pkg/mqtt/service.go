// Package mqtt publishes device state and Home Assistant discovery to a
// broker and routes set-topic commands back into the device engine. Two
// publish lanes exist on purpose: retained QoS 1 for state and discovery,
// and a QoS 0 fire-and-forget lane reserved for the fast path so motion
// events are never queued behind retained traffic.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/urmzd/zigman/pkg/device"
)

const (
	connectTimeout   = 10 * time.Second
	publishTimeout   = 5 * time.Second
	subscribeTimeout = 5 * time.Second
)

// Options configures the broker connection.
type Options struct {
	Broker    string
	BaseTopic string
	Username  string
	Password  string
}

// CommandRouter resolves set-topic targets and dispatches normalised
// commands. The device engine satisfies it.
type CommandRouter interface {
	Devices() []device.Device
	SendCommand(ctx context.Context, ieee, command string, value any, endpointID uint8) device.CommandResult
}

// Stats is a snapshot of publish and intake counters.
type Stats struct {
	StatePublished     uint64 `json:"state_published"`
	FastPublished      uint64 `json:"fast_published"`
	DiscoveryPublished uint64 `json:"discovery_published"`
	PublishErrors      uint64 `json:"publish_errors"`
	CommandsReceived   uint64 `json:"commands_received"`
}

// Service is the gateway's MQTT client.
type Service struct {
	opts   Options
	client pahomqtt.Client
	log    zerolog.Logger

	mu         sync.Mutex
	router     CommandRouter
	counters   Stats
	discovered map[string][]string
}

// NewService builds an unconnected service. Call Connect once the command
// router is wired.
func NewService(opts Options, log zerolog.Logger) *Service {
	if opts.BaseTopic == "" {
		opts.BaseTopic = "zigman"
	}
	return &Service{
		opts: opts,
		log:  log.With().Str("component", "mqtt").Logger(),
	}
}

// SetCommandRouter wires the set-topic intake. Messages arriving before a
// router is set are dropped.
func (s *Service) SetCommandRouter(r CommandRouter) {
	s.mu.Lock()
	s.router = r
	s.mu.Unlock()
}

// BaseTopic returns the topic root, e.g. "zigman".
func (s *Service) BaseTopic() string {
	return s.opts.BaseTopic
}

// BridgeStateTopic carries "online"/"offline", retained, and doubles as
// the LWT so the broker flips it if the gateway dies.
func (s *Service) BridgeStateTopic() string {
	return s.opts.BaseTopic + "/bridge/state"
}

// Connect dials the broker and blocks until the session is up or the
// timeout expires. Reconnects afterwards are automatic; OnConnect
// republishes "online" and resubscribes.
func (s *Service) Connect() error {
	broker := strings.TrimSpace(s.opts.Broker)
	if broker == "" {
		return errors.New("empty mqtt broker")
	}
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(fmt.Sprintf("zigman-%d", time.Now().Unix())).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetKeepAlive(30 * time.Second).
		SetConnectTimeout(8 * time.Second).
		SetOrderMatters(false).
		SetWill(s.BridgeStateTopic(), "offline", 1, true)

	if s.opts.Username != "" {
		opts.SetUsername(s.opts.Username)
	}
	if s.opts.Password != "" {
		opts.SetPassword(s.opts.Password)
	}

	opts.OnConnect = func(c pahomqtt.Client) {
		s.log.Info().Str("broker", broker).Msg("connected")
		s.publishBlocking(s.BridgeStateTopic(), []byte("online"), 1, true)
		s.subscribeCommands()
	}
	opts.OnConnectionLost = func(c pahomqtt.Client, err error) {
		s.log.Warn().Err(err).Msg("connection lost")
	}

	s.client = pahomqtt.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connect timeout after %s", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect failed: %w", err)
	}
	return nil
}

// Close publishes the offline marker and disconnects.
func (s *Service) Close() {
	if s.client == nil || !s.client.IsConnectionOpen() {
		return
	}
	s.publishBlocking(s.BridgeStateTopic(), []byte("offline"), 1, true)
	s.client.Disconnect(250)
	s.log.Info().Msg("disconnected")
}

// IsConnected reports whether the broker session is open.
func (s *Service) IsConnected() bool {
	return s.client != nil && s.client.IsConnectionOpen()
}

// PublishState pushes the full state document to <base>/<safeName>,
// retained at QoS 1.
func (s *Service) PublishState(ieee, safeName string, state map[string]any) {
	body, err := json.Marshal(state)
	if err != nil {
		s.log.Error().Str("ieee", ieee).Err(err).Msg("state marshal failed")
		return
	}
	if s.publishBlocking(s.stateTopic(safeName), body, 1, true) {
		s.count(func(c *Stats) { c.StatePublished++ })
	}
}

// PublishAvailability pushes "online"/"offline" to the device availability
// topic, retained.
func (s *Service) PublishAvailability(ieee, safeName string, available bool) {
	payload := "offline"
	if available {
		payload = "online"
	}
	s.publishBlocking(s.availabilityTopic(safeName), []byte(payload), 1, true)
}

// PublishFast sends a QoS 0 message and returns without waiting for the
// token. The topic is relative to the base topic.
func (s *Service) PublishFast(topic string, payload []byte) {
	if !s.IsConnected() {
		return
	}
	s.client.Publish(s.opts.BaseTopic+"/"+topic, 0, false, payload)
	s.count(func(c *Stats) { c.FastPublished++ })
}

// PublishJSON publishes an arbitrary document to an absolute topic. A nil
// payload publishes an empty body, clearing the retained message.
func (s *Service) PublishJSON(topic string, payload map[string]any, retain bool) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			s.log.Error().Str("topic", topic).Err(err).Msg("payload marshal failed")
			return
		}
	}
	s.publishBlocking(topic, body, 1, retain)
}

// Stats returns a counter snapshot.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

func (s *Service) stateTopic(safeName string) string {
	return s.opts.BaseTopic + "/" + safeName
}

func (s *Service) availabilityTopic(safeName string) string {
	return s.opts.BaseTopic + "/" + safeName + "/availability"
}

// publishBlocking waits for the broker ack with a timeout and reports
// success. Failures are logged and counted, never propagated.
func (s *Service) publishBlocking(topic string, payload []byte, qos byte, retain bool) bool {
	if !s.IsConnected() {
		return false
	}
	token := s.client.Publish(topic, qos, retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		s.log.Warn().Str("topic", topic).Msg("publish timeout")
		s.count(func(c *Stats) { c.PublishErrors++ })
		return false
	}
	if err := token.Error(); err != nil {
		s.log.Warn().Str("topic", topic).Err(err).Msg("publish failed")
		s.count(func(c *Stats) { c.PublishErrors++ })
		return false
	}
	return true
}

func (s *Service) count(fn func(*Stats)) {
	s.mu.Lock()
	fn(&s.counters)
	s.mu.Unlock()
}
