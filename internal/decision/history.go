package decision

import "sync"

// DefaultHistorySize 为信号历史的容量。
const DefaultHistorySize = 30

// History 是有界的信号历史，超出容量时淘汰最早的记录。
// 交易循环写入，HTTP 接口并发读取。
type History struct {
	mu    sync.RWMutex
	max   int
	items []Signal
}

func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{max: max, items: make([]Signal, 0, max)}
}

// Append 追加信号并按 FIFO 淘汰。
func (h *History) Append(sig Signal) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, sig)
	if over := len(h.items) - h.max; over > 0 {
		h.items = append(h.items[:0:0], h.items[over:]...)
	}
}

// Restore 用持久化的历史替换当前内容，只保留最近 max 条。
func (h *History) Restore(items []Signal) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(items) > h.max {
		items = items[len(items)-h.max:]
	}
	h.items = append(make([]Signal, 0, h.max), items...)
}

// Last 返回最近一条信号。
func (h *History) Last() (Signal, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.items) == 0 {
		return Signal{}, false
	}
	return h.items[len(h.items)-1], true
}

// Snapshot 返回按时间升序的副本。
func (h *History) Snapshot() []Signal {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Signal, len(h.items))
	copy(out, h.items)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

func (h *History) Cap() int { return h.max }
