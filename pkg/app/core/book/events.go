package book

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/easyswap/easyswap/pkg/app/core/order"
)

// MakeEvent is emitted once per accepted order, carrying the key and the
// full order content for off-core indexers.
type MakeEvent struct {
	OrderKey  common.Hash `json:"orderKey"`
	Order     order.Order `json:"order"`
	Timestamp int64       `json:"ts"` // unix seconds at acceptance
}

// Notifier fans MakeEvents out to subscribers. Publishing never blocks; a
// subscriber that falls behind loses events rather than stalling order
// creation.
type Notifier struct {
	mu   sync.RWMutex
	subs []chan MakeEvent
}

// NewNotifier creates an empty notifier
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers a new subscriber and returns its event channel
func (n *Notifier) Subscribe() <-chan MakeEvent {
	ch := make(chan MakeEvent, 256)

	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = append(n.subs, ch)
	return ch
}

// Publish delivers an event to every subscriber
func (n *Notifier) Publish(ev MakeEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
			// subscriber buffer full, drop
		}
	}
}
