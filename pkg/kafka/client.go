// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"pand-feedback-go/internal/config"
	"pand-feedback-go/pkg/events"
	"pand-feedback-go/pkg/log"
)

// MessageWriter 是 kafka.Writer 中 Publisher 用到的部分。
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher 把提交事件发送到 Kafka。writer 为 nil 时所有操作都是空操作。
type Publisher struct {
	writer MessageWriter
}

// NewPublisher 根据配置创建 Publisher，未配置 brokers 时返回禁用状态的 Publisher。
func NewPublisher(cfg config.KafkaConfig) *Publisher {
	if cfg.Brokers == "" {
		log.Info("未配置 Kafka brokers，提交事件不会发送")
		return &Publisher{}
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	log.Info("Kafka 生产者初始化成功")
	return &Publisher{writer: w}
}

// NewPublisherWithWriter 使用给定的 writer 创建 Publisher。
func NewPublisherWithWriter(w MessageWriter) *Publisher {
	return &Publisher{writer: w}
}

// Enabled 报告是否会真正发送事件。
func (p *Publisher) Enabled() bool {
	return p != nil && p.writer != nil
}

// Publish 发送一条 FeedbackSubmitted 事件，以文件名作为消息 key。
func (p *Publisher) Publish(ctx context.Context, evt events.FeedbackSubmitted) error {
	if !p.Enabled() {
		return nil
	}
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("序列化提交事件失败: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.Filename),
		Value: value,
	}); err != nil {
		return fmt.Errorf("发送提交事件失败: %w", err)
	}
	return nil
}

// Close 关闭底层 writer。
func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.writer.Close()
}
