package fleet

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/duskfolk/duskfolk/internal/agent"
	"github.com/duskfolk/duskfolk/internal/observe"
)

const (
	// rumorChance is the per-interaction probability an agent authors a rumor.
	rumorChance = 0.3

	// rumorSpreadChance is the per-listener probability a fresh rumor reaches
	// another agent immediately.
	rumorSpreadChance = 0.5

	// shareChance is the probability a reactive cycle that extracted new
	// topics also gossips them onward.
	shareChance = 0.4

	// referencedTopics is how many retrieved topics an interaction reinforces.
	referencedTopics = 2
)

// InteractionResult is the full payload of one player-to-agent interaction.
type InteractionResult struct {
	agent.ActionResult

	ReputationNow    float64
	TopicsExtracted  int
	TopicsRemembered int
	HeardFromOthers  int
	MemoriesShared   int
	RumorsSpread     int
}

// PlayerAction runs the full interaction pipeline for one player message:
// session touch, reactive cycle, topic extraction, reputation update via the
// resolved trust_mod, action log, and the probabilistic social aftermath
// (rumor authoring and spreading, topic reinforcement, memory sharing).
//
// A fallback frame short-circuits after the cycle: the player still gets the
// cautious response, but nothing social is derived from degraded cognition.
func (c *Coordinator) PlayerAction(ctx context.Context, agentID, playerID, playerName, action string) (InteractionResult, error) {
	ag, err := c.Agent(agentID)
	if err != nil {
		return InteractionResult{}, err
	}

	ctx, span := observe.StartSpan(ctx, "fleet.player_action")
	defer span.End()
	c.deps.Scale.RecordInteraction(agentID)
	observe.DefaultMetrics().RecordInteraction(ctx, agentID)

	if _, err := c.deps.Social.GetOrCreatePlayer(ctx, playerID, playerName); err != nil {
		return InteractionResult{}, err
	}

	// Counters the response reports alongside the frame.
	remembered, err := c.deps.Topics.Relevant(ctx, agentID, playerID, action, referencedTopics)
	if err != nil {
		return InteractionResult{}, err
	}
	heardRumors, _, err := c.deps.Social.RumorsHeard(ctx, agentID, playerID)
	if err != nil {
		return InteractionResult{}, err
	}

	res, err := ag.Act(ctx, agent.ActionInput{
		PlayerID:   playerID,
		PlayerName: playerName,
		Perception: action,
	})
	if err != nil {
		return InteractionResult{}, fmt.Errorf("fleet: player action: %w", err)
	}

	out := InteractionResult{
		ActionResult:     res,
		TopicsRemembered: len(remembered),
		HeardFromOthers:  len(heardRumors),
	}
	if res.Frame.Fallback {
		observe.DefaultMetrics().RecordFallbackFrame(ctx, "player_action")
		rep, repErr := c.deps.Social.ReputationOf(ctx, playerID, agentID)
		if repErr == nil {
			out.ReputationNow = rep
		}
		return out, nil
	}

	extracted, err := c.deps.Topics.Extract(ctx, agentID, playerID, action)
	if err != nil {
		return out, fmt.Errorf("fleet: extract topics: %w", err)
	}
	out.TopicsExtracted = len(extracted)

	if res.Frame.TrustMod != 0 {
		edge, err := c.deps.Social.ApplyTrust(ctx, playerID, agentID, res.Frame.TrustMod)
		if err != nil {
			return out, fmt.Errorf("fleet: apply trust: %w", err)
		}
		out.ReputationNow = edge.Score
	} else {
		rep, err := c.deps.Social.ReputationOf(ctx, playerID, agentID)
		if err != nil {
			return out, err
		}
		out.ReputationNow = rep
	}

	if err := c.deps.Social.LogAction(ctx, playerID, agentID, action, res.Frame.Dialogue, res.Frame.TrustMod); err != nil {
		return out, fmt.Errorf("fleet: log action: %w", err)
	}

	// Social aftermath is best-effort: a failed rumor or share never turns a
	// completed interaction into an error.
	if c.roll(rumorChance) {
		out.RumorsSpread = c.authorAndSpread(ctx, agentID, playerID, action, res.Frame.TrustMod)
	}
	for i, t := range remembered {
		if i == referencedTopics {
			break
		}
		if err := c.deps.Topics.MarkReferenced(ctx, t.ID); err != nil {
			c.logger.Warn("topic reinforcement failed",
				slog.Int64("topic_id", t.ID), slog.Any("error", err))
		}
	}
	if out.TopicsExtracted > 0 && c.roll(shareChance) {
		out.MemoriesShared = c.shareWithAll(ctx, agentID, playerID)
	}

	return out, nil
}

// authorAndSpread creates a rumor about the player and offers it to every
// other registered agent at the spread chance. Returns how many listeners
// newly heard it.
func (c *Coordinator) authorAndSpread(ctx context.Context, agentID, playerID, action string, trustMod float64) int {
	outcome := "neutral"
	switch {
	case trustMod > 0:
		outcome = "positive"
	case trustMod < 0:
		outcome = "negative"
	}

	rumor, err := c.deps.Social.AuthorRumor(ctx, playerID, agentID, action, outcome)
	if err != nil {
		c.logger.Warn("rumor authoring failed", slog.Any("error", err))
		return 0
	}

	var spread int
	for _, other := range c.AgentIDs() {
		if other == agentID || !c.roll(rumorSpreadChance) {
			continue
		}
		if err := c.deps.Social.Spread(ctx, rumor.ID, agentID, other); err != nil {
			c.logger.Warn("rumor spread failed",
				slog.String("to", other), slog.Any("error", err))
			continue
		}
		spread++
	}
	return spread
}

// shareWithAll offers the agent's topics about the player to every other
// registered agent, gated per pair by their relation. Returns topics newly
// shared across all listeners.
func (c *Coordinator) shareWithAll(ctx context.Context, agentID, playerID string) int {
	var total int
	for _, other := range c.AgentIDs() {
		if other == agentID {
			continue
		}
		n, err := c.deps.Topics.AutoShare(ctx, agentID, other, playerID)
		if err != nil {
			c.logger.Warn("memory share failed",
				slog.String("to", other), slog.Any("error", err))
			continue
		}
		total += n
	}
	return total
}

// ShareMemories shares one agent's topics with another on demand, optionally
// scoped to one player. Returns the number of topics newly shared.
func (c *Coordinator) ShareMemories(ctx context.Context, fromAgent, toAgent, playerID string) (int, error) {
	if _, err := c.Agent(fromAgent); err != nil {
		return 0, err
	}
	if _, err := c.Agent(toAgent); err != nil {
		return 0, err
	}
	return c.deps.Topics.AutoShare(ctx, fromAgent, toAgent, playerID)
}

// AgentToAgent delivers one agent's action to another as a perception that
// names the sender and the listener's current trust in them, runs the
// listener's reactive cycle, and applies the resolved trust_mod back to the
// listener's trust in the sender.
func (c *Coordinator) AgentToAgent(ctx context.Context, fromID, toID, action string) (agent.ActionResult, error) {
	if _, err := c.Agent(fromID); err != nil {
		return agent.ActionResult{}, fmt.Errorf("fleet: sender %q: %w", fromID, ErrAgentNotFound)
	}
	listener, err := c.Agent(toID)
	if err != nil {
		return agent.ActionResult{}, fmt.Errorf("fleet: listener %q: %w", toID, ErrAgentNotFound)
	}

	trust := c.Trust(toID, fromID)
	perception := fmt.Sprintf("%s (trust: %.2f): %s", fromID, trust, action)

	res, err := listener.Act(ctx, agent.ActionInput{Perception: perception})
	if err != nil {
		return agent.ActionResult{}, fmt.Errorf("fleet: agent interaction: %w", err)
	}

	if !res.Frame.Fallback && res.Frame.TrustMod != 0 {
		if _, err := c.AdjustTrust(ctx, toID, fromID, res.Frame.TrustMod); err != nil {
			return res, err
		}
	}
	return res, nil
}

// GossipReport summarises one gossip exchange between two agents.
type GossipReport struct {
	RumorsShared     int
	TopicsShared     int
	RelationImproved bool
}

// gossipRelationBump is the relation improvement from a completed exchange.
const gossipRelationBump = 0.05

// Gossip runs a full exchange from one agent to another: every rumor the
// sharer knows, plus its most emotionally loaded topics, then a small
// relation bump because shared secrets bring agents closer.
func (c *Coordinator) Gossip(ctx context.Context, fromID, toID string) (GossipReport, error) {
	if _, err := c.Agent(fromID); err != nil {
		return GossipReport{}, fmt.Errorf("fleet: gossip sender %q: %w", fromID, ErrAgentNotFound)
	}
	if _, err := c.Agent(toID); err != nil {
		return GossipReport{}, fmt.Errorf("fleet: gossip listener %q: %w", toID, ErrAgentNotFound)
	}

	var report GossipReport
	rumors, err := c.deps.Social.SpreadAllRumors(ctx, fromID, toID)
	if err != nil {
		return report, fmt.Errorf("fleet: gossip: %w", err)
	}
	report.RumorsShared = rumors

	shared, err := c.deps.Topics.AutoShare(ctx, fromID, toID, "")
	if err != nil {
		return report, fmt.Errorf("fleet: gossip: %w", err)
	}
	report.TopicsShared = shared

	if report.RumorsShared > 0 || report.TopicsShared > 0 {
		if _, err := c.deps.Social.AdjustRelation(ctx, fromID, toID, gossipRelationBump); err != nil {
			return report, fmt.Errorf("fleet: gossip: %w", err)
		}
		report.RelationImproved = true
	}
	return report, nil
}
