package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/webmirror/internal/config"
	"github.com/IshaanNene/webmirror/internal/document"
	"github.com/IshaanNene/webmirror/internal/identity"
	"github.com/IshaanNene/webmirror/internal/observability"
	"github.com/IshaanNene/webmirror/internal/render"
	"github.com/IshaanNene/webmirror/internal/types"
)

const bytesPerKB = 1000

// State represents the engine's current lifecycle state.
type State int32

const (
	StateIdle       State = 0
	StateRunning    State = 1
	StateTerminated State = 2
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Reason explains why a crawl terminated.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonQueueExhausted
	ReasonCapReached
	ReasonFailed
	ReasonCanceled
)

func (r Reason) String() string {
	switch r {
	case ReasonQueueExhausted:
		return "queue_exhausted"
	case ReasonCapReached:
		return "cap_reached"
	case ReasonFailed:
		return "failed"
	case ReasonCanceled:
		return "canceled"
	default:
		return "none"
	}
}

// Fetcher retrieves raw page content.
type Fetcher interface {
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)
}

// Storage persists page artifacts.
type Storage interface {
	Store(ctx context.Context, key identity.Key, kind identity.Kind, content []byte) error
}

// Result summarizes a finished crawl.
type Result struct {
	Root     string
	Visited  []string
	Reason   Reason
	Pending  int
	Elapsed  time.Duration
	Enqueued int

	// Remaining holds the URLs still queued at termination, in FIFO order.
	Remaining []string
}

// Engine is the crawl controller: it pops URLs breadth-first, mirrors each
// page and feeds same-site links back into the frontier.
type Engine struct {
	cfg       *config.Config
	logger    *slog.Logger
	fetcher   Fetcher
	storage   Storage
	metrics   *observability.Metrics
	scheduler *Scheduler
	state     atomic.Int32
}

// New creates a new Engine with the given configuration and collaborators.
func New(cfg *config.Config, logger *slog.Logger, f Fetcher, s Storage) *Engine {
	e := &Engine{
		cfg:     cfg,
		logger:  logger.With("component", "engine"),
		fetcher: f,
		storage: s,
		metrics: observability.NewMetrics(logger),
	}
	e.scheduler = NewScheduler(e)
	return e
}

// Metrics returns the engine's metrics.
func (e *Engine) Metrics() *observability.Metrics {
	return e.metrics
}

// GetState returns the current engine state.
func (e *Engine) GetState() State {
	return State(e.state.Load())
}

// Crawl mirrors rootURL and every page reachable through links containing
// rootURL, stopping once more than cfg.Engine.MaxPages pages were visited or
// the queue runs dry. Any fetch, parse, storage or addressing failure halts
// the crawl and is returned together with the partial result.
func (e *Engine) Crawl(ctx context.Context, rootURL string) (*Result, error) {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, fmt.Errorf("engine is in state %s, cannot start", e.GetState())
	}
	defer e.state.Store(int32(StateTerminated))

	start := time.Now()
	frontier := NewFrontier()
	registry := identity.NewRegistry()
	res := &Result{Root: rootURL}

	finish := func(reason Reason) *Result {
		res.Reason = reason
		res.Visited = frontier.Visited()
		res.Remaining = frontier.Snapshot()
		res.Pending = len(res.Remaining)
		res.Elapsed = time.Since(start)
		e.metrics.QueueDepth.Store(int64(res.Pending))
		e.logger.Info("crawl terminated",
			"root", rootURL,
			"reason", reason,
			"visited", len(res.Visited),
			"pending", res.Pending,
			"elapsed", res.Elapsed,
		)
		return res
	}

	seed, err := types.NewRequest(rootURL)
	if err != nil {
		return finish(ReasonFailed), err
	}
	frontier.Push(seed)

	maxPages := e.cfg.Engine.MaxPages
	e.logger.Info("crawl starting", "root", rootURL, "max_pages", maxPages, "concurrency", e.cfg.Engine.Concurrency)

	for frontier.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return finish(ReasonCanceled), stopped(err)
		}

		n := min(e.cfg.Engine.Concurrency, maxPages+1-frontier.VisitedCount())
		batch := frontier.PopN(n)
		e.metrics.QueueDepth.Store(int64(frontier.Len()))
		results := e.scheduler.fetchBatch(ctx, batch)

		for i, req := range batch {
			current := req.URLString()
			if results[i].err != nil {
				if ctx.Err() != nil {
					return finish(ReasonCanceled), stopped(fmt.Errorf("fetch %s: %w", current, results[i].err))
				}
				return finish(ReasonFailed), fmt.Errorf("fetch %s: %w", current, results[i].err)
			}

			links, err := e.mirror(ctx, registry, req, results[i].resp)
			if err != nil {
				if ctx.Err() != nil {
					return finish(ReasonCanceled), stopped(err)
				}
				e.metrics.PagesFailed.Add(1)
				return finish(ReasonFailed), err
			}
			e.metrics.PagesMirrored.Add(1)

			// The cap is checked before this page's links are enqueued, so the
			// page that pushes the count past maxPages contributes no links.
			if frontier.MarkVisited(current) > maxPages {
				return finish(ReasonCapReached), nil
			}

			for _, link := range links {
				if !strings.Contains(link, rootURL) {
					continue
				}
				child, err := types.NewRequest(link)
				if err != nil {
					e.logger.Debug("skipping unparsable link", "link", link, "error", err)
					continue
				}
				child.Depth = req.Depth + 1
				child.ParentURL = current
				if frontier.Push(child) {
					res.Enqueued++
					e.metrics.LinksEnqueued.Add(1)
				}
			}
		}
	}

	return finish(ReasonQueueExhausted), nil
}

// stopped reports an interruption as ErrCrawlStopped while keeping the
// underlying cause in the chain.
func stopped(cause error) error {
	return fmt.Errorf("%w: %w", types.ErrCrawlStopped, cause)
}

// mirror turns one fetched page into its four artifacts and returns the
// page's normalized links.
func (e *Engine) mirror(ctx context.Context, registry *identity.Registry, req *types.Request, resp *types.Response) ([]string, error) {
	current := req.URLString()
	logger := e.logger.With("url", current)

	key, err := registry.Claim(current)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", current, err)
	}

	if err := e.store(ctx, logger, key, identity.KindHTML, resp.Body); err != nil {
		return nil, fmt.Errorf("store html %s: %w", current, err)
	}

	doc, err := resp.Document()
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", current, &types.ParseError{URL: current, Err: err})
	}
	tree, links, err := document.ExtractDocument(doc, current)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", current, err)
	}
	e.metrics.LinksDiscovered.Add(int64(len(links)))

	docJSON, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode doc %s: %w", current, err)
	}
	if err := e.store(ctx, logger, key, identity.KindDocJSON, docJSON); err != nil {
		return nil, fmt.Errorf("store doc %s: %w", current, err)
	}

	linksJSON, err := json.MarshalIndent(links, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode links %s: %w", current, err)
	}
	if err := e.store(ctx, logger, key, identity.KindLinks, linksJSON); err != nil {
		return nil, fmt.Errorf("store links %s: %w", current, err)
	}
	logger.Info("wrote links", "count", len(links))

	md := render.Render(tree)
	if unknown := render.UnknownTags(tree); len(unknown) > 0 {
		e.metrics.UnknownTagsFound.Add(int64(len(unknown)))
		logger.Debug("tags rendered as plain content", "tags", unknown)
	}
	if err := e.store(ctx, logger, key, identity.KindMarkdown, []byte(md)); err != nil {
		return nil, fmt.Errorf("store markdown %s: %w", current, err)
	}

	return links, nil
}

func (e *Engine) store(ctx context.Context, logger *slog.Logger, key identity.Key, kind identity.Kind, content []byte) error {
	if err := e.storage.Store(ctx, key, kind, content); err != nil {
		return err
	}
	e.metrics.ArtifactsStored.Add(1)
	logger.Info("wrote artifact",
		"kind", kind,
		"key", key.String(),
		"size", fmt.Sprintf("%.1fKB", float64(len(content))/bytesPerKB),
	)
	return nil
}
