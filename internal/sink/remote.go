package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"wisefido-heartbeat/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-resty/resty/v2"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// dynamoItem DynamoDB 表项，主键 (user_id, timestamp)
type dynamoItem struct {
	UserID       string `dynamodbav:"user_id"`
	Timestamp    string `dynamodbav:"timestamp"`
	HeartbeatMax int    `dynamodbav:"heartbeat_max"`
	HeartbeatMin int    `dynamodbav:"heartbeat_min"`
	HeartbeatAvg int    `dynamodbav:"heartbeat_avg"`
	IsRisk       bool   `dynamodbav:"is_risk"`
}

// PutItemAPI DynamoDB PutItem 能力
type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoDBSink 云端心率记录表，PutItem 对相同主键覆盖
type DynamoDBSink struct {
	client PutItemAPI
	table  string
}

// NewDynamoDBSink 创建 DynamoDB 输出
func NewDynamoDBSink(client PutItemAPI, table string) *DynamoDBSink {
	return &DynamoDBSink{client: client, table: table}
}

func (s *DynamoDBSink) Name() string { return "dynamodb" }

func (s *DynamoDBSink) Write(ctx context.Context, sample *models.HeartRateSample) error {
	item, err := attributevalue.MarshalMap(dynamoItem{
		UserID:       sample.UserID,
		Timestamp:    sample.TimestampString(),
		HeartbeatMax: sample.HeartbeatMax,
		HeartbeatMin: sample.HeartbeatMin,
		HeartbeatAvg: sample.HeartbeatAvg,
		IsRisk:       sample.IsRisk,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal dynamodb item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

func (s *DynamoDBSink) Close() error { return nil }

// Execer ClickHouse 执行能力（driver.Conn 满足）
type Execer interface {
	Exec(ctx context.Context, query string, args ...any) error
	Close() error
}

// ClickHouseSink 写入 ReplacingMergeTree 表，按 (user_id, timestamp) 去重
type ClickHouseSink struct {
	conn  Execer
	table string
}

// NewClickHouseSink 创建 ClickHouse 输出
func NewClickHouseSink(conn Execer, table string) *ClickHouseSink {
	return &ClickHouseSink{conn: conn, table: table}
}

// ClickHouseSchema 建表语句
func ClickHouseSchema(table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			user_id       String,
			timestamp     DateTime,
			heartbeat_max UInt16,
			heartbeat_min UInt16,
			heartbeat_avg UInt16,
			is_risk       UInt8
		) ENGINE = ReplacingMergeTree
		ORDER BY (user_id, timestamp)
	`, table)
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

func (s *ClickHouseSink) Write(ctx context.Context, sample *models.HeartRateSample) error {
	var risk uint8
	if sample.IsRisk {
		risk = 1
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, timestamp, heartbeat_max, heartbeat_min, heartbeat_avg, is_risk)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.table)

	if err := s.conn.Exec(ctx, query,
		sample.UserID,
		sample.Timestamp,
		uint16(sample.HeartbeatMax),
		uint16(sample.HeartbeatMin),
		uint16(sample.HeartbeatAvg),
		risk,
	); err != nil {
		return fmt.Errorf("insert %s: %w", s.table, err)
	}
	return nil
}

func (s *ClickHouseSink) Close() error { return s.conn.Close() }

// MessageWriter Kafka 写入能力（*kafka.Writer 满足）
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaBatchTimeout 同步写入时单条消息的最长等待
const kafkaBatchTimeout = 10 * time.Millisecond

// NewKafkaWriter 按 user_id 哈希分区，同一用户的记录保持有序
// 每次 Write 只有一条记录，BatchSize 为 1 时写入立即发送，不等待 BatchTimeout
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: kafkaBatchTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

// KafkaSink 消息键为 user_id，值为 JSON 记录
type KafkaSink struct {
	w MessageWriter
}

// NewKafkaSink 创建 Kafka 输出
func NewKafkaSink(w MessageWriter) *KafkaSink {
	return &KafkaSink{w: w}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, sample *models.HeartRateSample) error {
	b, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}
	return s.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(sample.UserID),
		Value: b,
		Time:  sample.Timestamp,
	})
}

func (s *KafkaSink) Close() error { return s.w.Close() }

// Publisher MQTT 发布能力（common/mqtt.Client 满足）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Disconnect()
}

// MQTTSink 按用户发布到 <prefix>/<user_id>
type MQTTSink struct {
	pub    Publisher
	prefix string
	qos    byte
}

// NewMQTTSink 创建 MQTT 输出
func NewMQTTSink(pub Publisher, prefix string, qos byte) *MQTTSink {
	return &MQTTSink{pub: pub, prefix: prefix, qos: qos}
}

func (s *MQTTSink) Name() string { return "mqtt" }

// Topic 用户主题
func (s *MQTTSink) Topic(userID string) string {
	return s.prefix + "/" + userID
}

func (s *MQTTSink) Write(_ context.Context, sample *models.HeartRateSample) error {
	b, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}
	return s.pub.Publish(s.Topic(sample.UserID), s.qos, false, b)
}

func (s *MQTTSink) Close() error {
	s.pub.Disconnect()
	return nil
}

// HTTPSink 上报 HTTP API，请求头带 x-api-key；连接错误和 5xx 有限次重试
type HTTPSink struct {
	client   *resty.Client
	endpoint string
	logger   *zap.Logger
}

// NewHTTPSink 创建 HTTP API 输出
func NewHTTPSink(endpoint, apiKey string, timeout time.Duration, retries int, logger *zap.Logger) *HTTPSink {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", apiKey)

	return &HTTPSink{client: client, endpoint: endpoint, logger: logger}
}

func (s *HTTPSink) Name() string { return "http" }

func (s *HTTPSink) Write(ctx context.Context, sample *models.HeartRateSample) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(sample).
		Post(s.endpoint)
	if err != nil {
		return fmt.Errorf("failed to call heartbeat API: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("heartbeat API returned status %d: %s", resp.StatusCode(), resp.String())
	}

	s.logger.Debug("Heartbeat API accepted sample",
		zap.String("user_id", sample.UserID),
		zap.Int("status_code", resp.StatusCode()),
	)
	return nil
}

func (s *HTTPSink) Close() error { return nil }
