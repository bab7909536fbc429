package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"github.com/IshaanNene/webmirror/internal/config"
	"github.com/IshaanNene/webmirror/internal/identity"
	"github.com/IshaanNene/webmirror/internal/storage"
	"github.com/IshaanNene/webmirror/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const root = "https://site.test"

// fakeFetcher serves pages from a map, or from gen when the map has no entry.
type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	gen    func(url string) (string, bool)
	counts map[string]int
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages, counts: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	u := req.URLString()

	f.mu.Lock()
	f.counts[u]++
	f.mu.Unlock()

	body, ok := f.pages[u]
	if !ok && f.gen != nil {
		body, ok = f.gen(u)
	}
	if !ok {
		return nil, &types.FetchError{URL: u, StatusCode: http.StatusNotFound}
	}
	return types.NewBrowserResponse(req, http.StatusOK, []byte(body), u, 0), nil
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.counts {
		n += c
	}
	return n
}

func (f *fakeFetcher) maxPerURL() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := 0
	for _, c := range f.counts {
		m = max(m, c)
	}
	return m
}

func page(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><h1>Title</h1>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, h)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// smallSite has four in-scope pages:
// root -> /a, /b; /a -> /a/x; /b -> itself.
func smallSite() map[string]string {
	return map[string]string{
		root:                    page("/a", "/b", "#"),
		root + "/a":             page("/x"),
		root + "/b":             page(root + "/b"),
		root + "/a/x":           page(),
		"https://other.test/x":  page(),
		"https://other.test/x/": page(),
	}
}

func newTestEngine(t *testing.T, maxPages, concurrency int, f Fetcher) (*Engine, *storage.FileStorage) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Engine.MaxPages = maxPages
	cfg.Engine.Concurrency = concurrency
	store := storage.NewFileStorageFs(afero.NewMemMapFs(), "/out", testLogger)
	return New(cfg, testLogger, f, store), store
}

func TestCrawlQueueExhausted(t *testing.T) {
	f := newFakeFetcher(smallSite())
	e, _ := newTestEngine(t, 10, 1, f)

	res, err := e.Crawl(context.Background(), root)
	if err != nil {
		t.Fatalf("crawl error: %v", err)
	}
	if res.Reason != ReasonQueueExhausted {
		t.Errorf("expected queue_exhausted, got %s", res.Reason)
	}
	want := []string{root, root + "/a", root + "/b", root + "/a/x"}
	if !slices.Equal(res.Visited, want) {
		t.Errorf("expected BFS order %v, got %v", want, res.Visited)
	}
	if f.maxPerURL() != 1 {
		t.Errorf("expected every URL fetched once, counts %v", f.counts)
	}
	if e.GetState() != StateTerminated {
		t.Errorf("expected terminated state, got %s", e.GetState())
	}
}

func TestCrawlCapBound(t *testing.T) {
	tests := []struct {
		name          string
		maxPages      int
		concurrency   int
		wantVisited   int
		wantEnqueued  int
		wantRemaining []string
	}{
		{"cap zero fetches root only", 0, 1, 1, 0, nil},
		{"cap zero concurrent", 0, 8, 1, 0, nil},
		{"cap two", 2, 1, 3, 3, []string{root + "/a/x"}},
		{"cap two concurrent", 2, 2, 3, 3, []string{root + "/a/x"}},
		{"cap one wide batch", 1, 4, 2, 2, []string{root + "/b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher(smallSite())
			e, _ := newTestEngine(t, tt.maxPages, tt.concurrency, f)

			res, err := e.Crawl(context.Background(), root)
			if err != nil {
				t.Fatalf("crawl error: %v", err)
			}
			if res.Reason != ReasonCapReached {
				t.Errorf("expected cap_reached, got %s", res.Reason)
			}
			if len(res.Visited) != tt.wantVisited {
				t.Errorf("expected %d visited, got %v", tt.wantVisited, res.Visited)
			}
			if got := f.total(); got != tt.wantVisited {
				t.Errorf("expected %d fetches, got %d", tt.wantVisited, got)
			}
			// The page that crosses the cap must not contribute links.
			if res.Enqueued != tt.wantEnqueued {
				t.Errorf("expected %d enqueued, got %d", tt.wantEnqueued, res.Enqueued)
			}
			if !slices.Equal(res.Remaining, tt.wantRemaining) || res.Pending != len(tt.wantRemaining) {
				t.Errorf("expected remaining %v, got %v (pending %d)", tt.wantRemaining, res.Remaining, res.Pending)
			}
		})
	}
}

func TestCrawlLastPageLinksNotEnqueued(t *testing.T) {
	pages := map[string]string{root: page("/a", "/b", "/c")}
	e, _ := newTestEngine(t, 0, 1, newFakeFetcher(pages))

	res, err := e.Crawl(context.Background(), root)
	if err != nil {
		t.Fatalf("crawl error: %v", err)
	}
	if res.Pending != 0 || res.Enqueued != 0 || len(res.Remaining) != 0 {
		t.Errorf("expected root's links to be dropped at cap 0, got pending=%d enqueued=%d remaining=%v",
			res.Pending, res.Enqueued, res.Remaining)
	}
	if got := e.Metrics().LinksEnqueued.Load(); got != 0 {
		t.Errorf("expected no enqueued links in metrics, got %d", got)
	}
}

func TestCrawlInfiniteSite(t *testing.T) {
	f := newFakeFetcher(nil)
	f.gen = func(u string) (string, bool) {
		return page("/next", "/other"), true
	}
	e, _ := newTestEngine(t, 5, 3, f)

	res, err := e.Crawl(context.Background(), root)
	if err != nil {
		t.Fatalf("crawl error: %v", err)
	}
	if res.Reason != ReasonCapReached || len(res.Visited) != 6 {
		t.Errorf("expected 6 pages and cap_reached, got %d (%s)", len(res.Visited), res.Reason)
	}
	if f.maxPerURL() != 1 {
		t.Errorf("expected no revisits, counts %v", f.counts)
	}
}

func TestCrawlScope(t *testing.T) {
	f := newFakeFetcher(smallSite())
	e, _ := newTestEngine(t, 10, 2, f)

	res, err := e.Crawl(context.Background(), root)
	if err != nil {
		t.Fatalf("crawl error: %v", err)
	}
	for _, u := range res.Visited {
		if !strings.Contains(u, root) {
			t.Errorf("visited out-of-scope URL %s", u)
		}
	}
	if f.counts["https://other.test/x"] != 0 {
		t.Error("expected foreign host never to be fetched")
	}
}

func TestCrawlConcurrencyMatchesSequential(t *testing.T) {
	gen := func(u string) (string, bool) {
		if u == root {
			return page("/p1", "/p2", "/p3", "/p4", "/p5", "/p6", "/p7", "/p8"), true
		}
		return page("/q"), true
	}

	var orders [][]string
	for _, c := range []int{1, 3, 8} {
		f := newFakeFetcher(nil)
		f.gen = gen
		e, _ := newTestEngine(t, 12, c, f)

		res, err := e.Crawl(context.Background(), root)
		if err != nil {
			t.Fatalf("crawl error (concurrency %d): %v", c, err)
		}
		if f.total() != 13 {
			t.Errorf("concurrency %d: expected 13 fetches, got %d", c, f.total())
		}
		orders = append(orders, res.Visited)
	}

	for i := 1; i < len(orders); i++ {
		if !slices.Equal(orders[0], orders[i]) {
			t.Errorf("visit order differs:\n%v\n%v", orders[0], orders[i])
		}
	}
}

func TestCrawlArtifacts(t *testing.T) {
	f := newFakeFetcher(smallSite())
	e, store := newTestEngine(t, 10, 1, f)

	if _, err := e.Crawl(context.Background(), root); err != nil {
		t.Fatalf("crawl error: %v", err)
	}

	ctx := context.Background()
	key := identity.Resolve(root)

	raw, err := store.Load(ctx, key, identity.KindHTML)
	if err != nil || string(raw) != smallSite()[root] {
		t.Errorf("unexpected html artifact %q (%v)", raw, err)
	}

	doc, err := store.Load(ctx, key, identity.KindDocJSON)
	if err != nil {
		t.Fatalf("load doc: %v", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(doc, &tree); err != nil {
		t.Fatalf("doc is not JSON: %v", err)
	}
	if tree["tag"] != "body" {
		t.Errorf("expected body root, got %v", tree["tag"])
	}

	linksRaw, err := store.Load(ctx, key, identity.KindLinks)
	if err != nil {
		t.Fatalf("load links: %v", err)
	}
	var links []string
	if err := json.Unmarshal(linksRaw, &links); err != nil {
		t.Fatalf("links are not JSON: %v", err)
	}
	if want := []string{root + "/a", root + "/b"}; !slices.Equal(links, want) {
		t.Errorf("expected links %v, got %v", want, links)
	}

	md, err := store.Load(ctx, key, identity.KindMarkdown)
	if err != nil {
		t.Fatalf("load markdown: %v", err)
	}
	if !strings.Contains(string(md), "# Title") {
		t.Errorf("expected heading in markdown, got %q", md)
	}

	if got := e.Metrics().ArtifactsStored.Load(); got != 16 {
		t.Errorf("expected 16 artifacts for 4 pages, got %d", got)
	}
}

func TestCrawlFetchErrorIsFatal(t *testing.T) {
	pages := smallSite()
	pages[root] = page("/a", "/a-missing", "/b")
	f := newFakeFetcher(pages)
	e, store := newTestEngine(t, 10, 1, f)

	res, err := e.Crawl(context.Background(), root)

	var fe *types.FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 FetchError, got %v", err)
	}
	if res.Reason != ReasonFailed {
		t.Errorf("expected failed, got %s", res.Reason)
	}
	if want := []string{root, root + "/a"}; !slices.Equal(res.Visited, want) {
		t.Errorf("expected %v visited before failure, got %v", want, res.Visited)
	}
	for _, kind := range identity.Kinds {
		if _, err := store.Load(context.Background(), identity.Resolve(root+"/a"), kind); err != nil {
			t.Errorf("expected %s artifact of earlier page: %v", kind, err)
		}
	}
	if f.counts[root+"/b"] != 0 {
		t.Error("expected no fetch after the failing page")
	}
}

func TestCrawlStorageErrorIsFatal(t *testing.T) {
	cfg := config.DefaultConfig()
	store := storage.NewFileStorageFs(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/out", testLogger)
	e := New(cfg, testLogger, newFakeFetcher(smallSite()), store)

	res, err := e.Crawl(context.Background(), root)

	var se *types.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if res.Reason != ReasonFailed || len(res.Visited) != 0 {
		t.Errorf("expected failure before any page was visited, got %s %v", res.Reason, res.Visited)
	}
}

func TestCrawlCanceled(t *testing.T) {
	f := newFakeFetcher(smallSite())
	e, _ := newTestEngine(t, 10, 1, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Crawl(ctx, root)
	if !errors.Is(err, types.ErrCrawlStopped) {
		t.Fatalf("expected ErrCrawlStopped, got %v", err)
	}
	if res.Reason != ReasonCanceled || f.total() != 0 {
		t.Errorf("expected cancel before any fetch, got %s with %d fetches", res.Reason, f.total())
	}
}

// cancelingFetcher cancels the crawl context while a fetch is in flight and
// blocks until the cancellation is observed.
type cancelingFetcher struct {
	cancel context.CancelFunc
}

func (f *cancelingFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	f.cancel()
	<-ctx.Done()
	return nil, &types.FetchError{URL: req.URLString(), Err: ctx.Err()}
}

func TestCrawlCanceledDuringFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e, _ := newTestEngine(t, 10, 2, &cancelingFetcher{cancel: cancel})

	res, err := e.Crawl(ctx, root)
	if !errors.Is(err, types.ErrCrawlStopped) {
		t.Fatalf("expected ErrCrawlStopped, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in the chain, got %v", err)
	}
	if res.Reason != ReasonCanceled {
		t.Errorf("expected canceled, got %s", res.Reason)
	}
}

// cancelingStorage cancels the crawl context on its first write.
type cancelingStorage struct {
	cancel context.CancelFunc
}

func (s *cancelingStorage) Store(ctx context.Context, key identity.Key, kind identity.Kind, content []byte) error {
	s.cancel()
	return &types.StorageError{Backend: "test", Op: "write", Err: ctx.Err()}
}

func TestCrawlCanceledDuringStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := New(config.DefaultConfig(), testLogger, newFakeFetcher(smallSite()), &cancelingStorage{cancel: cancel})

	res, err := e.Crawl(ctx, root)
	if !errors.Is(err, types.ErrCrawlStopped) {
		t.Fatalf("expected ErrCrawlStopped, got %v", err)
	}
	if res.Reason != ReasonCanceled || len(res.Visited) != 0 {
		t.Errorf("expected canceled with nothing visited, got %s %v", res.Reason, res.Visited)
	}
	if got := e.Metrics().PagesFailed.Load(); got != 0 {
		t.Errorf("expected interruption not to count as a failed page, got %d", got)
	}
}

func TestCrawlRunsOnce(t *testing.T) {
	e, _ := newTestEngine(t, 0, 1, newFakeFetcher(smallSite()))
	if _, err := e.Crawl(context.Background(), root); err != nil {
		t.Fatalf("first crawl: %v", err)
	}
	if _, err := e.Crawl(context.Background(), root); err == nil {
		t.Error("expected second crawl on the same engine to fail")
	}
}

func TestFrontierFIFO(t *testing.T) {
	f := NewFrontier()
	for _, u := range []string{"https://x.com/1", "https://x.com/2", "https://x.com/3"} {
		r, _ := types.NewRequest(u)
		if !f.Push(r) {
			t.Fatalf("expected %s to be queued", u)
		}
	}

	dup, _ := types.NewRequest("https://x.com/2")
	if f.Push(dup) {
		t.Error("expected duplicate queued URL to be rejected")
	}

	batch := f.PopN(2)
	if len(batch) != 2 || batch[0].URLString() != "https://x.com/1" || batch[1].URLString() != "https://x.com/2" {
		t.Fatalf("unexpected batch %v", batch)
	}
	if got := f.Snapshot(); !slices.Equal(got, []string{"https://x.com/3"}) {
		t.Errorf("unexpected remaining queue %v", got)
	}
}

func TestFrontierVisited(t *testing.T) {
	f := NewFrontier()
	if n := f.MarkVisited("https://x.com"); n != 1 {
		t.Errorf("expected count 1, got %d", n)
	}
	if n := f.MarkVisited("https://x.com"); n != 1 {
		t.Errorf("expected repeat mark to keep count 1, got %d", n)
	}
	if !f.IsVisited("https://x.com") {
		t.Error("expected URL to be visited")
	}

	r, _ := types.NewRequest("https://x.com")
	if f.Push(r) {
		t.Error("expected visited URL to be rejected")
	}
}

func TestFrontierTryPopEmpty(t *testing.T) {
	f := NewFrontier()
	if got := f.TryPop(); got != nil {
		t.Errorf("expected nil from empty frontier, got %v", got)
	}
	if got := f.PopN(3); got != nil {
		t.Errorf("expected nil batch, got %v", got)
	}
}

func TestReasonString(t *testing.T) {
	if ReasonCapReached.String() != "cap_reached" || ReasonNone.String() != "none" {
		t.Error("unexpected reason names")
	}
}

func TestSchedulerBatchOrder(t *testing.T) {
	pages := map[string]string{}
	var batch []*types.Request
	for i := range 6 {
		u := fmt.Sprintf("%s/p%d", root, i)
		pages[u] = page()
		r, _ := types.NewRequest(u)
		batch = append(batch, r)
	}
	missing, _ := types.NewRequest(root + "/gone")
	batch = append(batch, missing)

	e, _ := newTestEngine(t, 10, 3, newFakeFetcher(pages))
	results := e.scheduler.fetchBatch(context.Background(), batch)

	if len(results) != len(batch) {
		t.Fatalf("expected %d results, got %d", len(batch), len(results))
	}
	for i, r := range results[:6] {
		if r.err != nil || r.resp.Request != batch[i] {
			t.Errorf("slot %d: expected response for %s, got %+v", i, batch[i].URLString(), r)
		}
	}
	if results[6].err == nil {
		t.Error("expected the missing page to fail in its own slot")
	}
}
