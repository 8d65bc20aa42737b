package quote

import (
	"context"
	"errors"
	"sync"
)

// Fanout 把同一条报价分发给多个 Sink
//
// 各 Sink 并发发布，互不阻塞；任一失败都会在 Publish 的返回值中体现，
// 但不影响其他 Sink 收到这条报价。
type Fanout struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewFanout 创建扇出
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: append([]Sink(nil), sinks...)}
}

// Add 追加一个 Sink
func (f *Fanout) Add(s Sink) {
	f.mu.Lock()
	f.sinks = append(f.sinks, s)
	f.mu.Unlock()
}

// Len Sink 数量
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sinks)
}

// Publish 并发发布，返回所有失败的合并错误
func (f *Fanout) Publish(ctx context.Context, q Quote) error {
	f.mu.RLock()
	sinks := f.sinks
	f.mu.RUnlock()

	if len(sinks) == 1 {
		return sinks[0].Publish(ctx, q)
	}

	errs := make([]error, len(sinks))
	var wg sync.WaitGroup
	for i, s := range sinks {
		wg.Add(1)
		go func(i int, s Sink) {
			defer wg.Done()
			errs[i] = s.Publish(ctx, q)
		}(i, s)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Close 关闭全部 Sink
func (f *Fanout) Close() error {
	f.mu.Lock()
	sinks := f.sinks
	f.sinks = nil
	f.mu.Unlock()

	var errs []error
	for _, s := range sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
