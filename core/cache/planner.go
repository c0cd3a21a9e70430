package cache

import (
	"context"
	"fmt"

	"switchboard/core/provider"

	"github.com/rs/zerolog"
)

// PlanStore persists the previous plan of each session.
type PlanStore interface {
	// LoadPlan returns the last saved plan, or nil when the session has none.
	LoadPlan(ctx context.Context, sessionID string) ([]int, error)
	SavePlan(ctx context.Context, sessionID string, plan []int) error
}

// CountFunc estimates the tokens of some content.
type CountFunc func(content []provider.ContentBlock) (int, error)

// Placement is where a request should carry cache points.
type Placement struct {
	System   bool // cache point after the system prompt
	Messages Plan // cache points after these history indices
}

// After reports whether a cache point follows message i.
func (p Placement) After(i int) bool {
	for _, b := range p.Messages {
		if b == i {
			return true
		}
		if b > i {
			return false
		}
	}
	return false
}

// Points returns the total number of cache points.
func (p Placement) Points() int {
	n := len(p.Messages)
	if p.System {
		n++
	}
	return n
}

// Planner computes placements for one session, carrying the previous plan forward.
type Planner struct {
	store       PlanStore
	sessionID   string
	count       CountFunc
	minMessages int
	log         zerolog.Logger
}

// NewPlanner returns a planner for sessionID. store may be nil, in which case
// every plan is computed from scratch.
func NewPlanner(store PlanStore, sessionID string, count CountFunc, log zerolog.Logger) *Planner {
	return &Planner{
		store:       store,
		sessionID:   sessionID,
		count:       count,
		minMessages: DefaultMinMessages,
		log:         log,
	}
}

// SessionID returns the session the planner tracks.
func (p *Planner) SessionID() string {
	return p.sessionID
}

// Place computes the cache placement for the next request.
// Only malformed content is an error; store failures are logged.
func (p *Planner) Place(ctx context.Context, info provider.ModelInfo, system string, history []provider.Message) (Placement, error) {
	if !info.SupportsPromptCache || info.MaxCachePoints <= 0 {
		return Placement{}, nil
	}

	var placement Placement
	if system != "" {
		n, err := p.count([]provider.ContentBlock{provider.TextBlock(system)})
		if err != nil {
			return Placement{}, fmt.Errorf("sizing system prompt: %w", err)
		}
		placement.System = n >= info.MinCacheTokens
	}

	sizes := make([]int, len(history))
	for i, msg := range history {
		n, err := p.count(msg.Content)
		if err != nil {
			return Placement{}, fmt.Errorf("sizing message %d: %w", i, err)
		}
		sizes[i] = n
	}

	prev := p.load(ctx)
	placement.Messages = Compute(sizes, prev, Constraints{
		MaxPoints:   info.MaxCachePoints - placement.Points(),
		MinTokens:   info.MinCacheTokens,
		MinMessages: p.minMessages,
	})
	p.save(ctx, placement.Messages)

	p.log.Debug().
		Str("session", p.sessionID).
		Bool("system", placement.System).
		Ints("boundaries", placement.Messages).
		Msg("cache placement")
	return placement, nil
}

func (p *Planner) load(ctx context.Context) Plan {
	if p.store == nil {
		return nil
	}
	prev, err := p.store.LoadPlan(ctx, p.sessionID)
	if err != nil {
		p.log.Warn().Err(err).Str("session", p.sessionID).Msg("loading previous cache plan")
		return nil
	}
	return prev
}

func (p *Planner) save(ctx context.Context, plan Plan) {
	if p.store == nil {
		return
	}
	if err := p.store.SavePlan(ctx, p.sessionID, plan); err != nil {
		p.log.Warn().Err(err).Str("session", p.sessionID).Msg("saving cache plan")
	}
}
