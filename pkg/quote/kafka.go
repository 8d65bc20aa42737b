// 文件: pkg/quote/kafka.go
// Kafka 报价发布
//
// 异步发送，发送错误在后台 goroutine 中计数并记录日志。

package quote

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// KafkaConfig 生产者配置
type KafkaConfig struct {
	Brokers        []string      // broker 地址列表
	Topic          string        // 目标 topic
	RequiredAcks   int           // 0=不等待, 1=leader确认, -1=全部确认
	Compression    string        // none, gzip, snappy, lz4, zstd
	FlushFrequency time.Duration // 刷新间隔
	FlushMessages  int           // 批量消息数
	MaxRetries     int           // 最大重试次数
}

// DefaultKafkaConfig 默认配置
func DefaultKafkaConfig(brokers []string) KafkaConfig {
	return KafkaConfig{
		Brokers:        brokers,
		Topic:          DefaultTopic,
		RequiredAcks:   1,
		Compression:    "snappy",
		FlushFrequency: 100 * time.Millisecond,
		FlushMessages:  100,
		MaxRetries:     3,
	}
}

// saramaConfig 转成 sarama 配置
func (c KafkaConfig) saramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()

	switch c.RequiredAcks {
	case 0:
		cfg.Producer.RequiredAcks = sarama.NoResponse
	case -1:
		cfg.Producer.RequiredAcks = sarama.WaitForAll
	default:
		cfg.Producer.RequiredAcks = sarama.WaitForLocal
	}

	switch c.Compression {
	case "gzip":
		cfg.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	cfg.Producer.Flush.Frequency = c.FlushFrequency
	cfg.Producer.Flush.Messages = c.FlushMessages
	cfg.Producer.Retry.Max = c.MaxRetries

	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true
	return cfg
}

// KafkaSink Kafka 报价发布者
type KafkaSink struct {
	producer sarama.AsyncProducer
	topic    string

	sent   atomic.Int64
	failed atomic.Int64

	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewKafkaSink 创建异步生产者
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	producer, err := sarama.NewAsyncProducer(cfg.Brokers, cfg.saramaConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newKafkaSink(producer, cfg.Topic), nil
}

func newKafkaSink(producer sarama.AsyncProducer, topic string) *KafkaSink {
	if topic == "" {
		topic = DefaultTopic
	}
	s := &KafkaSink{producer: producer, topic: topic}
	s.wg.Add(1)
	go s.handleErrors()
	return s
}

// Publish 异步发送一条报价
func (s *KafkaSink) Publish(ctx context.Context, q Quote) error {
	if s.closed.Load() {
		return ErrClosed
	}
	data, err := q.Encode()
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(q.Key()),
		Value: sarama.ByteEncoder(data),
	}
	select {
	case s.producer.Input() <- msg:
		s.sent.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *KafkaSink) handleErrors() {
	defer s.wg.Done()
	for err := range s.producer.Errors() {
		s.failed.Add(1)
		log.WithFields(log.Fields{"topic": err.Msg.Topic}).WithError(err.Err).Error("[Kafka] send error")
	}
}

// KafkaStats 统计信息
type KafkaStats struct {
	Sent   int64
	Failed int64
}

// Stats 获取统计信息
func (s *KafkaSink) Stats() KafkaStats {
	return KafkaStats{Sent: s.sent.Load(), Failed: s.failed.Load()}
}

// Close 关闭生产者，等待错误处理结束
func (s *KafkaSink) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	err := s.producer.Close()
	s.wg.Wait()
	return err
}
