package quote

import (
	"context"
	"errors"
)

// ErrClosed sink 已关闭
var ErrClosed = errors.New("quote sink closed")

// Sink 报价的发布目的地
type Sink interface {
	Publish(ctx context.Context, q Quote) error
	Close() error
}

// Discard 丢弃所有报价，未配置发布目的地时使用
type Discard struct{}

func (Discard) Publish(context.Context, Quote) error { return nil }
func (Discard) Close() error                         { return nil }

// PublishAll 顺序发布，遇到第一个错误即返回
func PublishAll(ctx context.Context, s Sink, quotes []Quote) error {
	for _, q := range quotes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Publish(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
