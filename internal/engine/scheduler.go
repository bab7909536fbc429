package engine

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/webmirror/internal/types"
)

// fetchResult is the outcome of fetching one batch member.
type fetchResult struct {
	resp *types.Response
	err  error
}

// Scheduler fetches batches of queue heads in parallel. It never touches the
// frontier; committing results stays with the engine loop.
type Scheduler struct {
	engine *Engine
	logger *slog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(e *Engine) *Scheduler {
	return &Scheduler{
		engine: e,
		logger: e.logger.With("component", "scheduler"),
	}
}

// fetchBatch fetches every request in batch, at most Concurrency at a time,
// and returns the results in batch order. Failures are returned per slot so
// the caller can commit the successful prefix first.
func (s *Scheduler) fetchBatch(ctx context.Context, batch []*types.Request) []fetchResult {
	results := make([]fetchResult, len(batch))

	var g errgroup.Group
	g.SetLimit(s.engine.cfg.Engine.Concurrency)

	for i, req := range batch {
		g.Go(func() error {
			results[i] = s.fetch(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Scheduler) fetch(ctx context.Context, req *types.Request) fetchResult {
	logger := s.logger.With("url", req.URLString(), "depth", req.Depth)
	m := s.engine.metrics

	fetchCtx, cancel := context.WithTimeout(ctx, s.engine.cfg.Engine.RequestTimeout)
	defer cancel()

	logger.Info("downloading")
	resp, err := s.engine.fetcher.Fetch(fetchCtx, req)
	if err != nil {
		m.PagesFailed.Add(1)
		logger.Error("fetch failed", "error", err)
		return fetchResult{err: err}
	}

	m.PagesFetched.Add(1)
	m.BytesDownloaded.Add(int64(len(resp.Body)))
	logger.Debug("fetched", "status", resp.StatusCode, "size", len(resp.Body), "duration", resp.FetchDuration)
	return fetchResult{resp: resp}
}
