// Package mqtt mirrors ingest events onto an MQTT broker.
package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/shaunagostinho/scoreboard-dash/internal/ingest"
	"github.com/shaunagostinho/scoreboard-dash/internal/scoreboard"
)

// Options configures the broker connection.
// Topic is a prefix: events go to <Topic>/state, <Topic>/status and
// <Topic>/diagnostic.
type Options struct {
	Broker         string
	ClientID       string
	Topic          string
	QoS            byte
	Retain         bool
	Diagnostics    bool
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
}

// Envelope wraps every published payload.
type Envelope struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Stamp int64  `json:"stamp"` // Unix ms
	Data  any    `json:"data"`
}

type sender interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Publisher implements ingest.Publisher. Publishing never waits for the
// broker; failures are logged.
type Publisher struct {
	client sender
	opts   Options
	errLog *rate.Limiter
}

// Connect dials the broker and returns a Publisher on it. The client
// reconnects on its own after a lost connection.
func Connect(opts Options) (*Publisher, error) {
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 30 * time.Second
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ClientID == "" {
		opts.ClientID = "scoreboard-dash-" + uuid.NewString()[:8]
	}
	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetKeepAlive(opts.KeepAlive).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("[mqtt] connection lost: %v", err)
		}).
		SetOnConnectHandler(func(paho.Client) {
			log.Printf("[mqtt] connected to %s", opts.Broker)
		})

	client := paho.NewClient(po)
	tok := client.Connect()
	if !tok.WaitTimeout(opts.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect timeout after %s", opts.ConnectTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", opts.Broker, err)
	}
	return newPublisher(client, opts), nil
}

func newPublisher(c sender, opts Options) *Publisher {
	return &Publisher{
		client: c,
		opts:   opts,
		errLog: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
}

func (p *Publisher) PublishState(st scoreboard.MatchState) {
	p.publish("state", st, p.opts.Retain)
}

func (p *Publisher) PublishStatus(s ingest.Status) {
	p.publish("status", s, p.opts.Retain)
}

func (p *Publisher) PublishDiagnostic(d ingest.Diagnostic) {
	if !p.opts.Diagnostics {
		return
	}
	p.publish("diagnostic", d, false)
}

// Close disconnects from the broker, allowing 250ms for in-flight messages.
func (p *Publisher) Close() {
	if c, ok := p.client.(paho.Client); ok {
		c.Disconnect(250)
	}
}

func (p *Publisher) publish(kind string, data any, retain bool) {
	topic, payload, err := buildMessage(p.opts.Topic, kind, data)
	if err != nil {
		log.Printf("[mqtt] %v", err)
		return
	}
	tok := p.client.Publish(topic, p.opts.QoS, retain, payload)
	go func() {
		if tok.WaitTimeout(5*time.Second) && tok.Error() != nil && p.errLog.Allow() {
			log.Printf("[mqtt] publish %s: %v", topic, tok.Error())
		}
	}()
}

func buildMessage(prefix, kind string, data any) (string, []byte, error) {
	payload, err := json.Marshal(Envelope{
		ID:    uuid.NewString(),
		Type:  kind,
		Stamp: time.Now().UnixMilli(),
		Data:  data,
	})
	if err != nil {
		return "", nil, fmt.Errorf("marshal %s: %w", kind, err)
	}
	topic := kind
	if prefix != "" {
		topic = prefix + "/" + kind
	}
	return topic, payload, nil
}
