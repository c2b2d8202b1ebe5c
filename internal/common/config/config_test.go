package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"redis", "postgres"}, SplitList(" redis, ,postgres,"))
	assert.Nil(t, SplitList(""))
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "owlrd", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=owlrd sslmode=disable", cfg.GetDSN())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_POOL_SIZE", "20")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("HEARTBEAT_API_TIMEOUT", "5")

	var r RedisConfig
	r.LoadFromEnv("REDIS")
	assert.Equal(t, RedisConfig{Addr: "cache:6380", DB: 2, PoolSize: 20}, r)

	k := KafkaConfig{Topic: "heartbeat.samples"}
	k.LoadFromEnv("KAFKA")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, k.Brokers)
	assert.Equal(t, "heartbeat.samples", k.Topic)

	a := APIConfig{Timeout: 30}
	a.LoadFromEnv("HEARTBEAT_API")
	assert.Equal(t, 5, a.Timeout)
	assert.Empty(t, a.Endpoint)
}
