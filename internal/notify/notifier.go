// Package notify будит потоковые подписки, когда в диалоге появился пост.
// Сами посты через него не передаются: подписчик все равно читает их из хранилища.
package notify

import "sync"

type Notifier struct {
	mu sync.RWMutex
	//   map[dialogueID] map[subscriberID] channel
	subs   map[string]map[uint64]chan struct{}
	nextID uint64
}

func New() *Notifier {
	return &Notifier{subs: make(map[string]map[uint64]chan struct{})}
}

// Subscribe возвращает канал пробуждений и функцию отписки.
// Канал с буфером 1: несколько публикаций подряд схлопываются в одну
func (n *Notifier) Subscribe(dialogueID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	n.nextID++
	id := n.nextID
	if n.subs[dialogueID] == nil {
		n.subs[dialogueID] = make(map[uint64]chan struct{})
	}
	n.subs[dialogueID][id] = ch
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[dialogueID], id)
			if len(n.subs[dialogueID]) == 0 {
				delete(n.subs, dialogueID)
			}
		})
	}
	return ch, cancel
}

// Publish никогда не блокируется
func (n *Notifier) Publish(dialogueID string) {
	if n == nil {
		return
	}
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, ch := range n.subs[dialogueID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (n *Notifier) Subscribers(dialogueID string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs[dialogueID])
}
