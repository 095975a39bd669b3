package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/duskfolk/duskfolk/internal/civ"
	"github.com/duskfolk/duskfolk/internal/observe"
)

const (
	// World tick bounds. Start clamps requested values into these.
	minTickInterval = 10 * time.Second
	maxTickInterval = 300 * time.Second
	minTimeScale    = 0.1
	maxTimeScale    = 100.0

	defaultTickInterval = 60 * time.Second
	defaultTimeScale    = 1.0

	// forgetThreshold is the strength below which the tick forgets topics.
	forgetThreshold = 0.1

	// Per-tick event probabilities.
	gossipTickChance = 0.3
	questTickChance  = 0.1

	// Fast-forward probability scaling: chance = min(cap, hours·base).
	gossipHourlyBase = 0.1
	gossipChanceCap  = 0.5
	tradeHourlyBase  = 0.05
	tradeChanceCap   = 0.4
	goalProgressChance  = 0.3
	goalProgressPerHour = 0.1
)

// ErrWorldRunning is returned by Start when the simulator is already live.
var ErrWorldRunning = errors.New("fleet: world simulator already running")

// ErrWorldNotRunning is returned by Stop when there is nothing to stop.
var ErrWorldNotRunning = errors.New("fleet: world simulator not running")

// WorldStats counts what the simulator has done since construction.
type WorldStats struct {
	TotalTicks      int64
	MemoriesDecayed int64
	MemoriesForgot  int64
	QuestsExpired   int64
	GossipEvents    int64
	QuestsGenerated int64
	TradesExecuted  int64
}

// WorldStatus is a point-in-time snapshot of the simulator.
type WorldStatus struct {
	Running      bool
	WorldTime    time.Time
	TimeScale    float64
	TickInterval time.Duration
	AgentCount   int
	Stats        WorldStats
}

// worldState is the simulator's mutable core, guarded by its own mutex so
// tick bookkeeping never contends with the agent registry lock.
type worldState struct {
	mu           sync.Mutex
	running      bool
	cancel       context.CancelFunc
	done         chan struct{}
	timeScale    float64
	tickInterval time.Duration
	worldTime    time.Time
	lastTick     time.Time
	stats        WorldStats
	ring         *eventRing
}

func newWorldState() worldState {
	return worldState{
		timeScale:    defaultTimeScale,
		tickInterval: defaultTickInterval,
		worldTime:    time.Now(),
		ring:         newEventRing(eventRingSize),
	}
}

// StartWorld launches the periodic tick loop. timeScale and tickInterval are
// clamped into their sane ranges; zero values select the defaults.
func (c *Coordinator) StartWorld(timeScale float64, tickInterval time.Duration) error {
	w := &c.world
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrWorldRunning
	}
	if timeScale != 0 {
		w.timeScale = clampFloat(timeScale, minTimeScale, maxTimeScale)
	}
	if tickInterval != 0 {
		w.tickInterval = clampDuration(tickInterval, minTickInterval, maxTickInterval)
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.running = true
	w.cancel = cancel
	w.done = make(chan struct{})
	w.lastTick = time.Now()
	interval := w.tickInterval
	w.mu.Unlock()

	go c.tickLoop(ctx, interval)
	c.logger.Info("world simulator started",
		slog.Float64("time_scale", w.timeScale),
		slog.Duration("tick_interval", interval))
	return nil
}

// StopWorld cancels the tick loop and waits for it to exit.
func (c *Coordinator) StopWorld() error {
	w := &c.world
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return ErrWorldNotRunning
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	c.logger.Info("world simulator stopped")
	return nil
}

// ConfigureWorld adjusts the simulator's pacing. Zero values leave the
// current setting alone. Works whether or not the world is running; a live
// tick loop picks the new interval up on its next tick.
func (c *Coordinator) ConfigureWorld(timeScale float64, tickInterval time.Duration) {
	w := &c.world
	w.mu.Lock()
	defer w.mu.Unlock()
	if timeScale != 0 {
		w.timeScale = clampFloat(timeScale, minTimeScale, maxTimeScale)
	}
	if tickInterval != 0 {
		w.tickInterval = clampDuration(tickInterval, minTickInterval, maxTickInterval)
	}
	c.logger.Info("world simulator configured",
		slog.Float64("time_scale", w.timeScale),
		slog.Duration("tick_interval", w.tickInterval))
}

// tickLoop drives periodic ticks until cancelled. Tick errors are logged and
// the loop continues; a broken tick must not stop the world.
func (c *Coordinator) tickLoop(ctx context.Context, interval time.Duration) {
	defer close(c.world.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Tick(ctx); err != nil {
				c.logger.Warn("world tick failed", slog.Any("error", err))
			}
			c.world.mu.Lock()
			next := c.world.tickInterval
			c.world.mu.Unlock()
			if next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// WorldStatus snapshots the simulator.
func (c *Coordinator) WorldStatus() WorldStatus {
	w := &c.world
	w.mu.Lock()
	defer w.mu.Unlock()
	return WorldStatus{
		Running:      w.running,
		WorldTime:    w.worldTime,
		TimeScale:    w.timeScale,
		TickInterval: w.tickInterval,
		AgentCount:   len(c.AgentIDs()),
		Stats:        w.stats,
	}
}

// WorldEvents returns up to limit retained events, oldest first.
func (c *Coordinator) WorldEvents(limit int) []Event {
	w := &c.world
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ring.last(limit)
}

// Tick runs one world tick: advance simulated time by the scaled wall
// elapsed, age and forget memories, expire quests, and roll the per-tick
// gossip and quest events. Returns the events this tick emitted.
func (c *Coordinator) Tick(ctx context.Context) ([]Event, error) {
	ctx, span := observe.StartSpan(ctx, "fleet.world_tick")
	defer span.End()
	start := time.Now()

	w := &c.world
	w.mu.Lock()
	now := time.Now()
	elapsed := now.Sub(w.lastTick)
	if elapsed <= 0 || elapsed > maxTickInterval {
		elapsed = w.tickInterval
	}
	gameElapsed := time.Duration(float64(elapsed) * w.timeScale)
	w.lastTick = now
	w.worldTime = w.worldTime.Add(gameElapsed)
	w.stats.TotalTicks++
	w.mu.Unlock()

	var events []Event

	report, err := c.deps.Scale.Tick(ctx, gameElapsed)
	if err != nil {
		return events, fmt.Errorf("fleet: world tick: %w", err)
	}
	forgot, err := c.deps.Topics.Cleanup(ctx, forgetThreshold)
	if err != nil {
		return events, fmt.Errorf("fleet: world tick: cleanup: %w", err)
	}
	expired, err := c.deps.Quests.Expire(ctx, now)
	if err != nil {
		return events, fmt.Errorf("fleet: world tick: expire quests: %w", err)
	}
	if expired > 0 {
		events = append(events, Event{
			Stream: StreamQuest,
			Type:   "quests_expired",
			Detail: fmt.Sprintf("%d quests expired unclaimed", expired),
		})
	}

	if c.roll(gossipTickChance) {
		if pair := c.pickAgents(2); pair != nil {
			if ev, ok := c.gossipEvent(ctx, pair[0], pair[1]); ok {
				events = append(events, ev)
			}
		}
	}
	if c.roll(questTickChance) {
		if pick := c.pickAgents(1); pick != nil {
			quest, err := c.deps.Quests.Generate(ctx, pick[0], "", nil)
			if err != nil {
				c.logger.Warn("quest generation failed", slog.Any("error", err))
			} else {
				w.mu.Lock()
				w.stats.QuestsGenerated++
				w.mu.Unlock()
				events = append(events, Event{
					Stream: StreamQuest,
					Type:   "quest_generated",
					Detail: fmt.Sprintf("%s offers: %s", pick[0], quest.Title),
				})
			}
		}
	}

	w.mu.Lock()
	w.stats.MemoriesDecayed += report.TopicsDecayed + report.SharedDecayed
	w.stats.MemoriesForgot += forgot
	w.stats.QuestsExpired += expired
	for i := range events {
		events[i].At = now
		w.ring.add(events[i])
	}
	w.mu.Unlock()

	for _, ev := range events {
		c.hub.Publish(ev)
	}
	observe.DefaultMetrics().WorldTickDuration.Record(ctx, time.Since(start).Seconds())
	return events, nil
}

// gossipEvent runs one gossip exchange and wraps it as a world event.
func (c *Coordinator) gossipEvent(ctx context.Context, from, to string) (Event, bool) {
	report, err := c.Gossip(ctx, from, to)
	if err != nil {
		c.logger.Warn("gossip failed",
			slog.String("from", from), slog.String("to", to), slog.Any("error", err))
		return Event{}, false
	}
	w := &c.world
	w.mu.Lock()
	w.stats.GossipEvents++
	w.mu.Unlock()
	return Event{
		Stream: StreamWorld,
		Type:   "gossip",
		Detail: fmt.Sprintf("%s told %s %d rumors and %d stories",
			from, to, report.RumorsShared, report.TopicsShared),
	}, true
}

// Advance deterministically fast-forwards the world by whole hours: memory
// decay and forgetting, quest expiry, goal progress, and hour-scaled gossip
// and trade rolls. Returns the emitted events.
func (c *Coordinator) Advance(ctx context.Context, hours float64) ([]Event, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("fleet: advance: hours must be positive, got %v", hours)
	}
	elapsed := time.Duration(hours * float64(time.Hour))
	now := time.Now()
	var events []Event

	direct, shared, err := c.deps.Topics.Decay(ctx, elapsed)
	if err != nil {
		return events, fmt.Errorf("fleet: advance: decay: %w", err)
	}
	forgot, err := c.deps.Topics.Cleanup(ctx, forgetThreshold)
	if err != nil {
		return events, fmt.Errorf("fleet: advance: cleanup: %w", err)
	}
	events = append(events, Event{
		Stream: StreamWorld,
		Type:   "time_advanced",
		Detail: fmt.Sprintf("%.0f hours passed; %d memories faded, %d forgotten",
			hours, direct+shared, forgot),
	})

	expired, err := c.deps.Quests.Expire(ctx, now.Add(elapsed))
	if err != nil {
		return events, fmt.Errorf("fleet: advance: expire quests: %w", err)
	}
	if expired > 0 {
		events = append(events, Event{
			Stream: StreamQuest,
			Type:   "quests_expired",
			Detail: fmt.Sprintf("%d quests expired unclaimed", expired),
		})
	}

	ids := c.AgentIDs()
	for _, id := range ids {
		active := c.deps.Goals.For(id, civ.GoalActive)
		if len(active) == 0 || !c.roll(goalProgressChance) {
			continue
		}
		goal, err := c.deps.Goals.UpdateProgress(active[0].ID, goalProgressPerHour*hours)
		if err != nil {
			c.logger.Warn("goal progress failed", slog.Any("error", err))
			continue
		}
		if goal.Status == civ.GoalCompleted {
			events = append(events, Event{
				Stream: StreamWorld,
				Type:   "goal_completed",
				Detail: fmt.Sprintf("%s completed goal: %s", id, goal.Description),
			})
		}
	}

	if c.roll(min(gossipChanceCap, hours*gossipHourlyBase)) {
		if pair := c.pickAgents(2); pair != nil {
			if ev, ok := c.gossipEvent(ctx, pair[0], pair[1]); ok {
				events = append(events, ev)
			}
		}
	}
	if c.roll(min(tradeChanceCap, hours*tradeHourlyBase)) {
		if ev, ok := c.executeRandomTrade(); ok {
			events = append(events, ev)
		}
	}

	w := &c.world
	w.mu.Lock()
	w.worldTime = w.worldTime.Add(elapsed)
	w.stats.MemoriesDecayed += direct + shared
	w.stats.MemoriesForgot += forgot
	w.stats.QuestsExpired += expired
	for i := range events {
		events[i].At = now
		w.ring.add(events[i])
	}
	w.mu.Unlock()

	for _, ev := range events {
		c.hub.Publish(ev)
	}
	return events, nil
}

// executeRandomTrade runs one trade on a random active route.
func (c *Coordinator) executeRandomTrade() (Event, bool) {
	routes := c.deps.Trade.Routes(civ.RouteActive)
	if len(routes) == 0 {
		return Event{}, false
	}
	c.rngMu.Lock()
	route := routes[c.rng.Intn(len(routes))]
	c.rngMu.Unlock()

	result, err := c.deps.Trade.Execute(route.ID)
	if err != nil {
		c.logger.Warn("trade execution failed",
			slog.String("route", route.ID), slog.Any("error", err))
		return Event{}, false
	}
	w := &c.world
	w.mu.Lock()
	w.stats.TradesExecuted++
	w.mu.Unlock()

	detail := result.Message
	if detail == "" {
		detail = fmt.Sprintf("trade on %s → %s earned %d gold",
			route.FromLocation, route.ToLocation, result.GoldEarned)
	}
	return Event{Stream: StreamWorld, Type: "trade", Detail: detail}, true
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
