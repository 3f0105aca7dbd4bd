// Package publisher ships session reports to an MQTT broker so a fleet
// backend can pick them up.
package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/amarton5/SwiftOBD2/internal/obd"
	"github.com/amarton5/SwiftOBD2/pkg/log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	DefaultClientID = "swiftobd2"
	DefaultTopic    = "vehicle/diagnostics"

	connectTimeout = 10 * time.Second
)

// Config holds publisher settings.
type Config struct {
	Broker   string
	ClientID string
	Topic    string
}

// Report is the JSON document published after a scan.
type Report struct {
	Timestamp    time.Time           `json:"timestamp"`
	VIN          string              `json:"vin,omitempty"`
	Protocol     string              `json:"protocol"`
	TroubleCodes map[string][]string `json:"trouble_codes"`
}

// Publisher sends reports to one broker/topic pair.
type Publisher struct {
	cfg    Config
	client mqtt.Client
}

// New creates a Publisher. Connect must be called before Publish.
func New(cfg Config) *Publisher {
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	return &Publisher{cfg: cfg}
}

// Connect establishes the broker session.
func (p *Publisher) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.cfg.Broker)
	opts.SetClientID(p.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("connected to MQTT broker")
	})

	p.client = mqtt.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("publisher: broker connect timeout")
	}
	return token.Error()
}

// Publish sends one session report.
func (p *Publisher) Publish(info *obd.Info, codes map[obd.ECURole][]obd.TroubleCode) error {
	if p.client == nil {
		return fmt.Errorf("publisher: not connected")
	}

	report := Report{
		Timestamp:    time.Now().UTC(),
		Protocol:     info.Protocol.String(),
		VIN:          info.VIN,
		TroubleCodes: make(map[string][]string),
	}
	for role, tcs := range codes {
		for _, tc := range tcs {
			report.TroubleCodes[role.String()] = append(report.TroubleCodes[role.String()], tc.Code)
		}
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.cfg.Topic, 1, false, payload)
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("publisher: publish timeout")
	}
	return token.Error()
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.client != nil {
		p.client.Disconnect(250)
	}
}
