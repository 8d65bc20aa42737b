// 文件: pkg/quote/nats.go
// NATS 报价发布 / 订阅
// 轻量级替代 Kafka，适合本地开发

package quote

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// NATSSink NATS 发布者
type NATSSink struct {
	conn    *nats.Conn
	subject string
	closed  atomic.Bool
}

// NewNATSSink 连接 NATS，subject 为空时用 DefaultSubject
func NewNATSSink(url, subject string) (*NATSSink, error) {
	conn, err := nats.Connect(url, nats.Name("optpricer"), nats.Timeout(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSink{conn: conn, subject: subject}, nil
}

// Publish 发布一条报价
func (s *NATSSink) Publish(ctx context.Context, q Quote) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := q.Encode()
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	return s.conn.Publish(s.subject, data)
}

// Close 刷出缓冲后关闭连接
func (s *NATSSink) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	err := s.conn.Flush()
	s.conn.Close()
	return err
}

// Handler 报价处理函数
type Handler func(Quote) error

// Subscriber NATS 报价订阅者
type Subscriber struct {
	conn *nats.Conn
	subs []*nats.Subscription
}

// NewSubscriber 连接 NATS
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := nats.Connect(url, nats.Name("optpricer-watch"), nats.Timeout(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Subscriber{conn: conn}, nil
}

// Subscribe 订阅主题，解码失败或 handler 出错只记录日志
func (s *Subscriber) Subscribe(subject string, handler Handler) error {
	if subject == "" {
		subject = DefaultSubject
	}
	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		q, err := Decode(msg.Data)
		if err == nil {
			err = handler(q)
		}
		if err != nil {
			log.WithFields(log.Fields{"subject": msg.Subject}).WithError(err).Warn("[NATS] handle error")
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close 取消订阅并关闭连接
func (s *Subscriber) Close() error {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.conn.Close()
	return nil
}
