package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"dream_incubator/internal/logger"
	"dream_incubator/internal/models"
	"dream_incubator/internal/service"
)

const (
	DefaultTopic   = "dream/+/packet"
	connectTimeout = 10 * time.Second
	ingestTimeout  = 5 * time.Second
)

var ErrNoSensorData = errors.New("packet has no sensor_data")

type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// Ingester is the part of the detection service the consumer needs.
type Ingester interface {
	Ingest(ctx context.Context, in service.IngestInput) (models.DetectionResult, error)
}

// Consumer feeds wearable packets published on dream/<device_id>/packet into detection.
type Consumer struct {
	client    paho.Client
	detection Ingester
	opts      Options
	log       *logger.Logger
	ctx       context.Context
}

func NewConsumer(opts Options, detection Ingester, log *logger.Logger) *Consumer {
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	if log == nil {
		log = logger.Nop()
	}

	co := paho.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		co.SetPassword(opts.Password)
	}
	co.SetAutoReconnect(true)
	co.SetCleanSession(true)
	co.SetConnectTimeout(connectTimeout)

	c := &Consumer{
		detection: detection,
		opts:      opts,
		log:       log.With("service", "MQTTConsumer"),
		ctx:       context.Background(),
	}
	// resubscribe after every (re)connect
	co.SetOnConnectHandler(func(cl paho.Client) {
		if err := c.subscribe(cl); err != nil {
			c.log.Errorw("mqtt_subscribe_failed", "err", err, "topic", c.opts.Topic)
		}
	})
	co.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.log.Warnw("mqtt_connection_lost", "err", err)
	})
	c.client = paho.NewClient(co)
	return c
}

// Start connects to the broker. Messages are handled until Stop or ctx cancellation.
func (c *Consumer) Start(ctx context.Context) error {
	c.ctx = ctx
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connect to mqtt broker %s: timeout", c.opts.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to mqtt broker %s: %w", c.opts.Broker, err)
	}
	c.log.Infow("mqtt_consumer_started", "broker", c.opts.Broker, "topic", c.opts.Topic)

	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return nil
}

func (c *Consumer) subscribe(cl paho.Client) error {
	token := cl.Subscribe(c.opts.Topic, c.opts.QoS, func(_ paho.Client, msg paho.Message) {
		if err := c.handleMessage(c.ctx, msg.Topic(), msg.Payload()); err != nil {
			c.log.Errorw("mqtt_message_failed", "err", err, "topic", msg.Topic())
		}
	})
	token.Wait()
	return token.Error()
}

func (c *Consumer) Stop() {
	if !c.client.IsConnected() {
		return
	}
	if token := c.client.Unsubscribe(c.opts.Topic); token.Wait() && token.Error() != nil {
		c.log.Errorw("mqtt_unsubscribe_failed", "err", token.Error())
	}
	c.client.Disconnect(250)
	c.log.Infow("mqtt_consumer_stopped")
}

// deviceFromTopic extracts <device_id> from dream/<device_id>/packet.
func deviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[2] != "packet" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (c *Consumer) handleMessage(ctx context.Context, topic string, payload []byte) error {
	var p models.DevicePacket
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode packet: %w", err)
	}
	if p.SensorData == nil {
		return ErrNoSensorData
	}

	deviceID := deviceFromTopic(topic)
	if deviceID == "" {
		deviceID = p.DeviceID
	} else if p.DeviceID != "" && p.DeviceID != deviceID {
		c.log.Warnw("mqtt_device_mismatch", "topic_device", deviceID, "payload_device", p.DeviceID)
	}

	ctx, cancel := context.WithTimeout(ctx, ingestTimeout)
	defer cancel()
	res, err := c.detection.Ingest(ctx, service.IngestInput{
		DeviceID: deviceID,
		Samples:  p.SensorData.Plethysmometer,
		Flags:    p.SensorData.Flags(),
	})
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	c.log.Debugw("mqtt_packet_ingested", "device_id", res.DeviceID, "rem_detected", res.RemDetected, "phase", res.CurrentRemPhase)
	return nil
}
