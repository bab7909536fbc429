package fetcher

import (
	"sync/atomic"

	"github.com/IshaanNene/webmirror/internal/config"
)

// agentRotator hands out the configured User-Agents round-robin. It is
// shared by the HTTP and browser fetchers.
type agentRotator struct {
	agents []string
	index  atomic.Int64
}

func newAgentRotator(agents []string) *agentRotator {
	return &agentRotator{agents: agents}
}

// next returns the next User-Agent, or a webmirror default when none is
// configured.
func (r *agentRotator) next() string {
	if len(r.agents) == 0 {
		return "webmirror/" + config.Version
	}
	idx := r.index.Add(1) % int64(len(r.agents))
	return r.agents[idx]
}
