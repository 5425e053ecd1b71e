package fetcher

import (
	"math/rand"
	"sync"
	"time"
)

// UserAgentPool holds a fixed set of browser user-agents and rotates to a
// random one with a small probability per request. Keeping the same agent
// most of the time keeps cookies and agent consistent within a session.
type UserAgentPool struct {
	mu          sync.Mutex
	agents      []string
	probability float64
	rng         *rand.Rand
	current     string
}

// NewUserAgentPool creates a pool. A nil rng is seeded from the clock.
func NewUserAgentPool(agents []string, probability float64, rng *rand.Rand) *UserAgentPool {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	p := &UserAgentPool{
		agents:      append([]string(nil), agents...),
		probability: probability,
		rng:         rng,
	}
	if len(p.agents) > 0 {
		p.current = p.agents[rng.Intn(len(p.agents))]
	}
	return p
}

// Pick returns the agent for the next request, possibly rotating first.
func (p *UserAgentPool) Pick() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.agents) == 0 {
		return ""
	}
	if p.rng.Float64() < p.probability {
		p.current = p.agents[p.rng.Intn(len(p.agents))]
	}
	return p.current
}

// Current returns the agent in use without rotating.
func (p *UserAgentPool) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}
