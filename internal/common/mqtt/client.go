package mqtt

import (
	"fmt"
	"time"

	"wisefido-heartbeat/internal/common/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 10 * time.Second
	quiesceMillis  = 250
)

// Client paho 发布端封装，只用于心率记录上报
type Client struct {
	client mqtt.Client
	broker string
	logger *zap.Logger
}

// NewClient 连接 broker；suffix 非空时拼接到 ClientID 后，避免多个生成器实例互踢
func NewClient(cfg *config.MQTTConfig, suffix string, logger *zap.Logger) (*Client, error) {
	clientID := cfg.ClientID
	if suffix != "" {
		clientID = clientID + "-" + suffix
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("MQTT connected", zap.String("broker", cfg.Broker), zap.String("client_id", clientID))
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("MQTT connection lost", zap.String("broker", cfg.Broker), zap.Error(err))
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to MQTT broker %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, err)
	}

	return &Client{client: client, broker: cfg.Broker, logger: logger}, nil
}

// Publish 同步发布，等待 broker 确认（QoS > 0）或超时
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to topic %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

// Disconnect 等待在途消息后断开
func (c *Client) Disconnect() {
	c.client.Disconnect(quiesceMillis)
	c.logger.Info("MQTT disconnected", zap.String("broker", c.broker))
}
