package router

// Strategy selects how the router picks a provider when the request
// does not name one.
type Strategy string

const (
	// StrategyPreferred routes to the explicitly selected current
	// provider. The default.
	StrategyPreferred Strategy = "preferred"

	// StrategyCheapest routes to the configured provider with the
	// lowest cost tier.
	StrategyCheapest Strategy = "cheapest"

	// StrategyRoundRobin rotates across configured providers.
	StrategyRoundRobin Strategy = "round-robin"
)

// Characteristics is the static per-provider table backing the routing
// strategies. Tiers are 1 (best/cheapest/fastest) to 4.
type Characteristics struct {
	CostTier     int
	SpeedTier    int
	QualityTier  int
	RateLimitRPM int
	BestFor      []string
}

// characteristics describes the known vendors. Local models are free
// but slow; aggregators trade quality consistency for price.
var characteristics = map[string]Characteristics{
	"anthropic": {
		CostTier: 3, SpeedTier: 2, QualityTier: 1, RateLimitRPM: 50,
		BestFor: []string{"complex reasoning", "long documents", "nuanced distractors"},
	},
	"openai": {
		CostTier: 3, SpeedTier: 2, QualityTier: 1, RateLimitRPM: 60,
		BestFor: []string{"general purpose", "multimodal sources"},
	},
	"gemini": {
		CostTier: 2, SpeedTier: 1, QualityTier: 2, RateLimitRPM: 60,
		BestFor: []string{"large inputs", "fast turnaround", "multimodal sources"},
	},
	"openrouter": {
		CostTier: 1, SpeedTier: 2, QualityTier: 3, RateLimitRPM: 30,
		BestFor: []string{"cost-sensitive batches", "model variety"},
	},
	"ollama": {
		CostTier: 1, SpeedTier: 4, QualityTier: 4, RateLimitRPM: 0,
		BestFor: []string{"offline use", "private source material"},
	},
}

// CharacteristicsFor returns the static table entry for a provider.
func CharacteristicsFor(name string) (Characteristics, bool) {
	c, ok := characteristics[name]
	return c, ok
}

// SetRoutingStrategy selects the strategy used when requests do not
// name a provider.
func (r *Router) SetRoutingStrategy(s Strategy) error {
	switch s {
	case StrategyPreferred, StrategyCheapest, StrategyRoundRobin:
	default:
		return &UnknownStrategyError{Strategy: string(s)}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategy = s
	return nil
}

// UnknownStrategyError rejects strategies outside the known set.
type UnknownStrategyError struct{ Strategy string }

func (e *UnknownStrategyError) Error() string {
	return "unknown routing strategy: " + e.Strategy
}

// routeLocked resolves the provider name for the active strategy.
// Caller holds r.mu.
func (r *Router) routeLocked() string {
	configured := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if r.adapters[name].IsConfigured() {
			configured = append(configured, name)
		}
	}
	if len(configured) == 0 {
		return ""
	}

	switch r.strategy {
	case StrategyCheapest:
		best := configured[0]
		bestTier := costTier(best)
		for _, name := range configured[1:] {
			if t := costTier(name); t < bestTier {
				best, bestTier = name, t
			}
		}
		return best

	case StrategyRoundRobin:
		name := configured[r.rrCursor%len(configured)]
		r.rrCursor++
		return name

	default:
		if r.current != "" && r.adapters[r.current].IsConfigured() {
			return r.current
		}
		return configured[0]
	}
}

func costTier(name string) int {
	if c, ok := characteristics[name]; ok {
		return c.CostTier
	}
	// Unknown providers (mocks, future vendors) route as mid-tier.
	return 2
}
