package engine

import (
	"sync"

	"github.com/IshaanNene/webmirror/internal/types"
)

// Frontier is the crawl's URL bookkeeping: a FIFO queue plus the sets of
// queued and visited URLs. It is created per crawl and safe for concurrent use.
type Frontier struct {
	mu      sync.Mutex
	queue   []*types.Request
	queued  map[string]struct{}
	visited map[string]struct{}
	order   []string
}

// NewFrontier creates an empty Frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		queue:   make([]*types.Request, 0, 64),
		queued:  make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}
}

// Push enqueues req unless its URL was already queued or visited. It reports
// whether the request was added.
func (f *Frontier) Push(req *types.Request) bool {
	u := req.URLString()

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.visited[u]; ok {
		return false
	}
	if _, ok := f.queued[u]; ok {
		return false
	}
	f.queued[u] = struct{}{}
	f.queue = append(f.queue, req)
	return true
}

// PopN removes and returns up to n requests from the head of the queue.
func (f *Frontier) PopN(n int) []*types.Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n > len(f.queue) {
		n = len(f.queue)
	}
	if n <= 0 {
		return nil
	}
	batch := make([]*types.Request, n)
	copy(batch, f.queue[:n])
	clear(f.queue[:n])
	f.queue = f.queue[n:]
	return batch
}

// TryPop removes and returns the head of the queue, or nil if it is empty.
func (f *Frontier) TryPop() *types.Request {
	batch := f.PopN(1)
	if len(batch) == 0 {
		return nil
	}
	return batch[0]
}

// MarkVisited records rawURL as visited and returns the new visited count.
// The count is read under the same lock as the insert, so callers comparing
// it against the cap see a consistent value.
func (f *Frontier) MarkVisited(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.visited[rawURL]; !ok {
		f.visited[rawURL] = struct{}{}
		f.order = append(f.order, rawURL)
	}
	return len(f.visited)
}

// IsVisited reports whether rawURL has been visited.
func (f *Frontier) IsVisited(rawURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[rawURL]
	return ok
}

// Len returns the number of requests waiting in the queue.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// VisitedCount returns the number of visited URLs.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// Visited returns the visited URLs in the order they were marked.
func (f *Frontier) Visited() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

// Snapshot returns the queued URLs in FIFO order without removing them.
func (f *Frontier) Snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	urls := make([]string, len(f.queue))
	for i, req := range f.queue {
		urls[i] = req.URLString()
	}
	return urls
}
