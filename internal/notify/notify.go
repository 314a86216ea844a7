// Package notify は管理者に表示する一時的な通知（トースト）を提供する。
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/storeadmin/internal/model"
)

// Level は通知の重要度を表す。
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification は1件の通知を表す。
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Action    string    `json:"action,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier は通知の表示先のインターフェース。
type Notifier interface {
	Notify(level Level, message, action string)
}

// FromAPIError はAPIErrorをエラー通知として送る。
func FromAPIError(n Notifier, apiErr *model.APIError) {
	if n == nil || apiErr == nil {
		return
	}
	n.Notify(LevelError, apiErr.Message, apiErr.Action)
}

// Queue は新しい通知を最大capacity件まで保持するNotifier。
// 上限を超えた場合は古い通知から破棄する。
type Queue struct {
	mu       sync.Mutex
	items    []Notification
	capacity int
	now      func() time.Time
}

// NewQueue はQueueを生成する。capacityが1未満の場合は1として扱う。
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{capacity: capacity, now: time.Now}
}

// Notify は通知を追加する。
func (q *Queue) Notify(level Level, message, action string) {
	n := Notification{
		ID:        uuid.New().String(),
		Level:     level,
		Message:   message,
		Action:    action,
		CreatedAt: q.now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, n)
	if over := len(q.items) - q.capacity; over > 0 {
		q.items = append([]Notification(nil), q.items[over:]...)
	}
}

// Drain は保持している通知を古い順に返し、キューを空にする。
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	if items == nil {
		return []Notification{}
	}
	return items
}

// Len は保持している通知の件数を返す。
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// compile-time interface check
var _ Notifier = (*Queue)(nil)
