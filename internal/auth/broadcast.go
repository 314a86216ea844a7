package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/storeadmin/internal/model"
)

// Broadcaster はセッション変更通知の配信路を抽象化する。
type Broadcaster interface {
	// Publish はイベントを全購読者に配信する。
	Publish(ctx context.Context, event model.SessionEvent) error
	// Subscribe はイベント受信時に呼ばれるコールバックを登録し、解除関数を返す。
	Subscribe(fn func(model.SessionEvent)) (dispose func(), err error)
}

// LocalBroadcaster はプロセス内でイベントを配信するBroadcaster。
// REDIS_URLが未設定の場合に使用する。
type LocalBroadcaster struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(model.SessionEvent)
}

// NewLocalBroadcaster はLocalBroadcasterを生成する。
func NewLocalBroadcaster() *LocalBroadcaster {
	return &LocalBroadcaster{subs: make(map[int]func(model.SessionEvent))}
}

// Publish は登録済みのコールバックを同期的に呼び出す。
func (b *LocalBroadcaster) Publish(_ context.Context, event model.SessionEvent) error {
	b.mu.RLock()
	fns := make([]func(model.SessionEvent), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(event)
	}
	return nil
}

// Subscribe はコールバックを登録する。解除関数は複数回呼んでも安全。
func (b *LocalBroadcaster) Subscribe(fn func(model.SessionEvent)) (func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}, nil
}

// RedisBroadcaster はRedis Pub/Subでイベントを配信するBroadcaster。
// 複数インスタンス間でサインアウト等の変更を共有する。
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
}

// NewRedisBroadcaster はRedisBroadcasterを生成する。
func NewRedisBroadcaster(client *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, channel: channel}
}

// Publish はイベントをJSONにエンコードしてチャネルに送信する。
func (b *RedisBroadcaster) Publish(ctx context.Context, event model.SessionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal session event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish session event: %w", err)
	}
	return nil
}

// Subscribe はチャネルを購読し、受信したイベントごとにfnを呼び出す。
// 購読の確立を待ってから返る。解除関数はPubSubを閉じ、受信ゴルーチンの終了を待つ。
func (b *RedisBroadcaster) Subscribe(fn func(model.SessionEvent)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())

	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event model.SessionEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					slog.Warn("failed to decode session event",
						slog.String("channel", b.channel),
						slog.String("error", err.Error()),
					)
					continue
				}
				fn(event)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			pubsub.Close()
			<-done
		})
	}, nil
}

// compile-time interface check
var (
	_ Broadcaster = (*LocalBroadcaster)(nil)
	_ Broadcaster = (*RedisBroadcaster)(nil)
)
