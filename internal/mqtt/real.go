package mqtt

import (
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/lampd/internal/logic"
)

// Options configures a RealClient.
type Options struct {
	Broker         string
	Username       string
	Password       string
	ClientID       string
	Topics         Topics
	QoS            byte
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// RealClient talks to an actual MQTT broker. Reconnection is left to paho.
type RealClient struct {
	client  paho.Client
	opts    Options
	inbox   *Inbox
	timeout time.Duration
}

// NewRealClient connects to the broker and subscribes to the command and
// throttle feeds, delivering every message into inbox. If the broker is not
// reachable within the connect timeout the client keeps retrying in the
// background and NewRealClient returns without error.
func NewRealClient(o Options, inbox *Inbox) (*RealClient, error) {
	c := &RealClient{
		opts:    o,
		inbox:   inbox,
		timeout: o.PublishTimeout,
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectTimeout(o.ConnectTimeout).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})
	if o.Topics.System != "" {
		opts.SetWill(o.Topics.System, PayloadOffline, 1, true)
	}

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(o.ConnectTimeout) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", o.Broker)
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return c, nil
}

// onConnect runs on every (re)connect. The session is clean, so
// subscriptions are made again each time.
func (c *RealClient) onConnect(client paho.Client) {
	log.Printf("mqtt: connected to %s", c.opts.Broker)

	filters := map[string]byte{c.opts.Topics.Command: c.opts.QoS}
	if c.opts.Topics.Throttle != "" {
		filters[c.opts.Topics.Throttle] = c.opts.QoS
	}
	token := client.SubscribeMultiple(filters, c.deliver)
	if !token.WaitTimeout(c.timeout) {
		log.Printf("mqtt: subscribe timeout")
	} else if err := token.Error(); err != nil {
		log.Printf("mqtt: subscribe: %v", err)
	}

	if c.opts.Topics.System != "" {
		client.Publish(c.opts.Topics.System, 1, true, PayloadOnline)
	}
}

func (c *RealClient) deliver(_ paho.Client, m paho.Message) {
	c.inbox.Push(logic.Message{Topic: m.Topic(), Payload: m.Payload()})
}

// PublishState sends lampon/lampoff to the state feed.
func (c *RealClient) PublishState(on bool) error {
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := c.client.Publish(c.opts.Topics.State, c.opts.QoS, false, FormatStatePayload(on))
	if !token.WaitTimeout(c.timeout) {
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	return nil
}

// PublishSystem sends a system lifecycle event to the system topic.
// It is a no-op when no system topic is configured.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	if c.opts.Topics.System == "" {
		return nil
	}
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	token := c.client.Publish(c.opts.Topics.System, 1, event.Retained, payload)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("publish system: %w", ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}

	return nil
}

// IsConnected reports whether the broker connection is open.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close marks the device offline and disconnects from the broker.
func (c *RealClient) Close() error {
	if c.opts.Topics.System != "" && c.client.IsConnectionOpen() {
		c.client.Publish(c.opts.Topics.System, 1, true, PayloadOffline).WaitTimeout(time.Second)
	}
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
