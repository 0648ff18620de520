package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/dl9xyz/dmrgateway/pkg/logger"
	"github.com/dl9xyz/dmrgateway/pkg/protocol"
	"github.com/dl9xyz/dmrgateway/pkg/slot"
)

// Config holds MQTT publisher configuration
type Config struct {
	Enabled     bool
	Broker      string
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	Retained    bool
}

// Publisher publishes dispatch.Observer events to an MQTT broker over
// paho.mqtt.golang. It satisfies dispatch.Observer structurally, the way
// database.TransmissionLogger does, so pkg/mqtt never needs to import
// pkg/dispatch.
type Publisher struct {
	config Config
	log    *logger.Logger
	client paho.Client
}

// TrafficEvent reports a slot claim, the gateway's unit of "something is
// keying up".
type TrafficEvent struct {
	SourceID  uint32    `json:"source_id"`
	DestID    uint32    `json:"dest_id"`
	Timeslot  int       `json:"timeslot"`
	StreamID  uint32    `json:"stream_id"`
	Owner     string    `json:"owner"`
	Timestamp time.Time `json:"timestamp"`
}

// LinkEvent reports an XLX reflector link change.
type LinkEvent struct {
	Network   string    `json:"network"`
	Reflector uint32    `json:"reflector"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a new MQTT publisher. The paho client is constructed but not
// connected until Start is called.
func New(config Config, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}

	p := &Publisher{
		config: config,
		log:    log.WithComponent("mqtt"),
	}

	if !config.Enabled {
		return p
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetOnConnectHandler(func(paho.Client) {
		p.log.Info("mqtt client connected", logger.String("broker", config.Broker))
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.log.Warn("mqtt connection lost", logger.Error(err))
	})

	p.client = paho.NewClient(opts)
	return p
}

// Start connects to the broker. It blocks up to the connect timeout.
func (p *Publisher) Start(ctx context.Context) error {
	if !p.config.Enabled {
		p.log.Info("mqtt publisher disabled")
		return nil
	}

	p.log.Info("starting mqtt publisher",
		logger.String("broker", p.config.Broker),
		logger.String("client_id", p.config.ClientID))

	token := p.client.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return nil
}

// Stop disconnects from the broker.
func (p *Publisher) Stop() {
	if !p.config.Enabled || p.client == nil {
		return
	}
	p.log.Info("stopping mqtt publisher")
	p.client.Disconnect(250)
}

// SlotClaimed publishes a TrafficEvent. It satisfies dispatch.Observer.
func (p *Publisher) SlotClaimed(f protocol.Frame, owner slot.Owner) {
	if !p.config.Enabled {
		return
	}
	p.publish("traffic", TrafficEvent{
		SourceID:  f.SrcID,
		DestID:    f.DstID,
		Timeslot:  f.Slot,
		StreamID:  f.StreamID,
		Owner:     owner.String(),
		Timestamp: time.Now(),
	})
}

// XLXLinkChanged publishes a LinkEvent. It satisfies dispatch.Observer.
func (p *Publisher) XLXLinkChanged(name string, reflector uint32) {
	if !p.config.Enabled {
		return
	}
	p.publish("links/change", LinkEvent{
		Network:   name,
		Reflector: reflector,
		Timestamp: time.Now(),
	})
}

func (p *Publisher) publish(suffix string, event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error("failed to serialize mqtt event", logger.String("topic", suffix), logger.Error(err))
		return
	}

	topic := p.formatTopic(suffix)
	token := p.client.Publish(topic, p.config.QoS, p.config.Retained, payload)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			p.log.Warn("mqtt publish failed", logger.String("topic", topic), logger.Error(token.Error()))
		}
	}()
}

// formatTopic formats a topic with the configured prefix
func (p *Publisher) formatTopic(suffix string) string {
	prefix := strings.TrimSuffix(p.config.TopicPrefix, "/")
	if prefix == "" {
		return suffix
	}
	return fmt.Sprintf("%s/%s", prefix, suffix)
}
