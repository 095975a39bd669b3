package civ

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/duskfolk/duskfolk/pkg/memory"
)

// RouteStatus is the route state machine: active ↔ disrupted.
type RouteStatus string

const (
	RouteActive    RouteStatus = "active"
	RouteDisrupted RouteStatus = "disrupted"
)

// TradeGoods is everything that moves along a route.
var TradeGoods = []string{
	"food", "weapons", "medicine", "tools",
	"luxury_goods", "raw_materials", "information",
}

// TradeLocations are the known trade hubs.
var TradeLocations = []string{
	"porto_cobre_gates", "merchant_district", "docks",
	"northern_pass", "old_quarter", "market_square",
}

// Route is a trade connection between two agents and two locations.
type Route struct {
	ID            string
	FromLocation  string
	ToLocation    string
	FromAgent     string
	ToAgent       string
	Goods         []string
	ProfitMargin  float64
	RiskLevel     float64
	Status        RouteStatus
	EstablishedAt time.Time
	LastTrade     time.Time
	TotalTrades   int
}

// TradeResult is the outcome of one trade run.
type TradeResult struct {
	RouteID    string
	Success    bool
	GoldEarned int
	Event      string
	Message    string
}

// Trade manages the trade route registry.
type Trade struct {
	logger *slog.Logger

	mu     sync.RWMutex
	routes map[string]Route
	rng    *rand.Rand
}

// TradeOption configures a [Trade] registry.
type TradeOption func(*Trade)

// WithTradeRand injects a seeded random source.
func WithTradeRand(rng *rand.Rand) TradeOption {
	return func(t *Trade) {
		if rng != nil {
			t.rng = rng
		}
	}
}

// WithTradeLogger sets the registry logger.
func WithTradeLogger(l *slog.Logger) TradeOption {
	return func(t *Trade) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTrade builds an empty route registry.
func NewTrade(opts ...TradeOption) *Trade {
	t := &Trade{
		logger: slog.Default(),
		routes: make(map[string]Route),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Establish opens a route between two agents. Empty locations are sampled
// from the known hubs, never the same hub twice. The route carries one to
// three goods with a sampled margin and risk.
func (t *Trade) Establish(fromAgent, toAgent, fromLoc, toLoc string) Route {
	t.mu.Lock()
	defer t.mu.Unlock()

	if fromLoc == "" {
		fromLoc = TradeLocations[t.rng.Intn(len(TradeLocations))]
	}
	if toLoc == "" {
		for {
			toLoc = TradeLocations[t.rng.Intn(len(TradeLocations))]
			if toLoc != fromLoc {
				break
			}
		}
	}

	route := Route{
		ID:            uuid.NewString()[:12],
		FromLocation:  fromLoc,
		ToLocation:    toLoc,
		FromAgent:     fromAgent,
		ToAgent:       toAgent,
		Goods:         t.sampleGoods(1 + t.rng.Intn(3)),
		ProfitMargin:  0.05 + t.rng.Float64()*0.2,
		RiskLevel:     0.1 + t.rng.Float64()*0.4,
		Status:        RouteActive,
		EstablishedAt: time.Now(),
	}
	t.routes[route.ID] = route

	t.logger.Debug("trade route established",
		slog.String("route_id", route.ID),
		slog.String("from", fromLoc),
		slog.String("to", toLoc))
	return route
}

func (t *Trade) sampleGoods(n int) []string {
	idx := t.rng.Perm(len(TradeGoods))[:n]
	goods := make([]string, n)
	for i, j := range idx {
		goods[i] = TradeGoods[j]
	}
	return goods
}

// Routes lists routes, optionally filtered by status ("" matches all).
func (t *Trade) Routes(status RouteStatus) []Route {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Route
	for _, r := range t.routes {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// Route fetches one route.
func (t *Trade) Route(routeID string) (Route, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.routes[routeID]
	if !ok {
		return Route{}, fmt.Errorf("route %s: %w", routeID, memory.ErrNotFound)
	}
	return r, nil
}

// Execute runs one trade on an active route. A roll under the route's risk
// level disrupts it; otherwise the trade counts and pays out against a 100
// gold base.
func (t *Trade) Execute(routeID string) (TradeResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.routes[routeID]
	if !ok {
		return TradeResult{}, fmt.Errorf("execute trade %s: %w", routeID, memory.ErrNotFound)
	}
	if r.Status != RouteActive {
		return TradeResult{}, fmt.Errorf("execute trade %s (status %s): %w", routeID, r.Status, ErrWrongState)
	}

	if t.rng.Float64() < r.RiskLevel {
		r.Status = RouteDisrupted
		t.routes[routeID] = r
		return TradeResult{
			RouteID: routeID,
			Event:   "trade_disrupted",
			Message: "The trade was disrupted by bandits!",
		}, nil
	}

	r.TotalTrades++
	r.LastTrade = time.Now()
	t.routes[routeID] = r

	return TradeResult{
		RouteID:    routeID,
		Success:    true,
		GoldEarned: int(100 * (1 + r.ProfitMargin)),
		Message:    "Trade completed successfully",
	}, nil
}

// Disrupt forces an active route into the disrupted state.
func (t *Trade) Disrupt(routeID string) error {
	return t.setStatus(routeID, RouteActive, RouteDisrupted)
}

// Restore reopens a disrupted route.
func (t *Trade) Restore(routeID string) error {
	return t.setStatus(routeID, RouteDisrupted, RouteActive)
}

func (t *Trade) setStatus(routeID string, from, to RouteStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.routes[routeID]
	if !ok {
		return fmt.Errorf("route %s: %w", routeID, memory.ErrNotFound)
	}
	if r.Status != from {
		return fmt.Errorf("route %s (status %s): %w", routeID, r.Status, ErrWrongState)
	}
	r.Status = to
	t.routes[routeID] = r
	return nil
}
