package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventType 事件类型
type EventType string

const (
	EventNewLead          EventType = "NEW_LEAD"
	EventStatsUpdated     EventType = "STATS_UPDATED"
	EventNotification     EventType = "NOTIFICATION"
	EventExportCompleted  EventType = "EXPORT_COMPLETED"
	EventExtractionResult EventType = "EXTRACTION_RESULT"
	EventScanStatus       EventType = "SCAN_STATUS"
)

// Event 进程内广播的事件
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Notification 提示给用户的消息
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Publisher 尽力投递,没有订阅者或订阅者处理不过来时直接丢弃
type Publisher interface {
	Publish(t EventType, payload any)
}

// Bus 不保证送达的进程内事件总线
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
	logger *zap.Logger
	now    func() time.Time
}

var _ Publisher = (*Bus)(nil)

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{subs: map[int]chan Event{}, logger: logger.Named("notify"), now: time.Now}
}

// Subscribe 返回事件通道和取消函数,buffer 决定订阅者可以落后多少条
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

func (b *Bus) Publish(t EventType, payload any) {
	ev := Event{Type: t, Payload: payload, At: b.now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Debug("订阅者繁忙,丢弃事件", zap.Int("subscriber", id), zap.String("type", string(t)))
		}
	}
}

// Close 关闭所有订阅通道,之后的发布被忽略
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Nop 丢弃所有事件
type Nop struct{}

func (Nop) Publish(EventType, any) {}
