package eventsink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"Beacon/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const writeTimeout = 10 * time.Second

// KafkaConfig Kafka 导出配置
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS"`
	Topic   string   `env:"KAFKA_TOPIC"`
}

// Enabled 未配置 broker 时不导出
func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 && c.Topic != "" }

// messageWriter kafka.Writer 的最小子集，便于测试
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink 以报警 id 为 key 写入，同一报警的事件落在同一分区保持顺序
type KafkaSink struct {
	writer messageWriter
	topic  string
}

// ParseBrokers 解析逗号分隔的 broker 列表
func ParseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// NewKafkaSink 异步写入，失败只记录日志
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("kafka sink requires brokers and topic")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("kafka event export failed", zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
	logger.Info("kafka event sink configured", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return &KafkaSink{writer: w, topic: cfg.Topic}, nil
}

func (k *KafkaSink) Emit(ctx context.Context, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.Key),
		Value: value,
		Time:  env.At,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.Type)},
		},
	})
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
