package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/duskfolk/duskfolk/internal/mind"
	"github.com/duskfolk/duskfolk/pkg/memory"
	"github.com/duskfolk/duskfolk/pkg/types"
)

// work is the mailbox loop: the single owner of traits, vitals, and emotion.
func (a *Agent) work(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-a.mailbox:
			switch msg := m.(type) {
			case actionMsg:
				result, err := a.cycle(msg.ctx, msg.in)
				msg.reply <- actionReply{result: result, err: err}
			case statusMsg:
				msg.reply <- a.snapshot()
			case vitalsMsg:
				a.limbic.Vitals = msg.vitals
				msg.reply <- struct{}{}
			case decayMsg:
				a.limbic.DecayVitals(msg.elapsed)
			case reflectMsg:
				a.reflect(ctx)
			}
		}
	}
}

// autonomous feeds the worker: vitals decay every second, a reflection every
// reflection interval. It owns no state; everything goes through the mailbox.
func (a *Agent) autonomous(ctx context.Context) {
	ticker := time.NewTicker(vitalsTickInterval)
	defer ticker.Stop()

	last := time.Now()
	lastReflection := last
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.deliver(ctx, decayMsg{elapsed: now.Sub(last)})
			last = now
			if now.Sub(lastReflection) >= a.reflectionInterval {
				lastReflection = now
				a.deliver(ctx, reflectMsg{})
			}
		}
	}
}

func (a *Agent) deliver(ctx context.Context, msg any) {
	select {
	case a.mailbox <- msg:
	case <-ctx.Done():
	}
}

// cycle is one reactive cognition pass. Any cognition failure degrades to
// the fallback frame and persists nothing; the player always gets an answer.
func (a *Agent) cycle(ctx context.Context, in ActionInput) (ActionResult, error) {
	frame, err := a.think(ctx, in)
	if err != nil {
		a.logger.Warn("cognition degraded", slog.Any("error", err))
	}

	frame = mind.ResolveConflicts(frame, a.limbic.Vitals)
	frame.TrustMod = mind.ModulateTrust(frame.TrustMod, a.traits)

	event, intensity := mind.ClassifyPerception(in.Perception)
	a.limbic.ApplyEvent(event, intensity)

	if !frame.Fallback {
		if err := a.persistCycle(ctx, in, frame, event); err != nil {
			return ActionResult{Frame: frame, Vitals: a.limbic.Vitals, Emotional: a.limbic.Emotional, Traits: a.traits}, err
		}
	}

	return ActionResult{
		Frame:     frame,
		Vitals:    a.limbic.Vitals,
		Emotional: a.limbic.Emotional,
		Traits:    a.traits,
	}, nil
}

// think runs retrieval, the scaled think-time pause, and the model call.
// Every failure path returns the fallback frame alongside its cause.
func (a *Agent) think(ctx context.Context, in ActionInput) (types.CognitiveFrame, error) {
	cognition, err := a.assembleContext(ctx, in)
	if err != nil {
		return mind.FallbackFrame(err), err
	}
	if err := a.thinkPause(ctx); err != nil {
		return mind.FallbackFrame(err), err
	}
	return a.engine.Decide(ctx, mind.DecideInput{
		Persona:    a.persona,
		Traits:     a.traits,
		Vitals:     a.limbic.Vitals,
		Emotional:  a.limbic.Emotional,
		Perception: in.Perception,
		Context:    cognition,
	})
}

// assembleContext fans the six retrieval reads out in parallel. Each branch
// writes a distinct field, so no locking is needed.
func (a *Agent) assembleContext(ctx context.Context, in ActionInput) (mind.Context, error) {
	var c mind.Context
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		mems, err := a.vault.RecentMemories(gctx, a.id, contextMemories)
		if err != nil {
			return fmt.Errorf("recent memories: %w", err)
		}
		c.Memories = mems
		return nil
	})
	g.Go(func() error {
		beliefs, err := a.vault.Beliefs(gctx, a.id, contextBeliefs)
		if err != nil {
			return fmt.Errorf("beliefs: %w", err)
		}
		c.Beliefs = beliefs
		return nil
	})
	g.Go(func() error {
		scored, err := a.topics.Relevant(gctx, a.id, in.PlayerID, in.Perception, contextTopics)
		if err != nil {
			return fmt.Errorf("relevant topics: %w", err)
		}
		for _, s := range scored {
			c.Topics = append(c.Topics, s.Topic)
		}
		return nil
	})
	g.Go(func() error {
		shared, err := a.vault.SharedTopicsFor(gctx, a.id, in.PlayerID, contextTopics)
		if err != nil {
			return fmt.Errorf("shared topics: %w", err)
		}
		c.SharedTopics = shared
		return nil
	})
	g.Go(func() error {
		rumors, _, err := a.social.RumorsHeard(gctx, a.id, in.PlayerID)
		if err != nil {
			return fmt.Errorf("rumors: %w", err)
		}
		for _, r := range rumors {
			c.Rumors = append(c.Rumors, r.Content)
		}
		return nil
	})
	g.Go(func() error {
		rep, err := a.social.ReputationOf(gctx, in.PlayerID, a.id)
		if err != nil {
			return fmt.Errorf("reputation: %w", err)
		}
		c.Reputation = rep
		c.HasReputation = in.PlayerID != ""
		return nil
	})

	if err := g.Wait(); err != nil {
		return mind.Context{}, err
	}
	return c, nil
}

// thinkPause sleeps the scaled think time derived from arousal.
func (a *Agent) thinkPause(ctx context.Context) error {
	pause := time.Duration(float64(a.limbic.ThinkTime()) * thinkScale)
	timer := time.NewTimer(pause)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// persistCycle writes the episodic record of the interaction and, on
// high-urgency perceptions, the trait drift it caused. Never called for
// fallback frames.
func (a *Agent) persistCycle(ctx context.Context, in ActionInput, frame types.CognitiveFrame, event mind.EventKind) error {
	_, err := a.vault.AppendMemory(ctx, memory.Memory{
		AgentID:  a.id,
		Kind:     memory.KindEpisodic,
		Content:  "Player action: " + in.Perception,
		Strength: 0.6,
	})
	if err != nil {
		return fmt.Errorf("persist cycle: %w", err)
	}

	trait, delta, ok := mind.DriftFor(event, frame.Urgency)
	if !ok {
		return nil
	}
	current, _ := a.traits.Get(trait)
	result := memory.SoftClamp(current + delta)
	a.traits.Set(trait, result)
	_, err = a.vault.AppendTraitDelta(ctx, memory.TraitDelta{
		AgentID: a.id,
		Trait:   trait,
		Delta:   delta,
		Reason:  fmt.Sprintf("urgent %s perception", event),
		Result:  result,
	})
	if err != nil {
		return fmt.Errorf("persist trait drift: %w", err)
	}
	return nil
}

// reflect summarises the last five memories into a belief. Failures are
// logged and swallowed; reflection is best-effort background work.
func (a *Agent) reflect(ctx context.Context) {
	mems, err := a.vault.RecentMemories(ctx, a.id, 5)
	if err != nil {
		a.logger.Warn("reflection skipped", slog.Any("error", err))
		return
	}
	belief, err := a.engine.Reflect(ctx, mems)
	if err != nil {
		a.logger.Warn("reflection failed", slog.Any("error", err))
		return
	}
	if belief == "" {
		return
	}
	if _, err := a.vault.UpsertBelief(ctx, memory.Belief{
		AgentID:  a.id,
		Content:  belief,
		Strength: 0.7,
	}); err != nil {
		a.logger.Warn("reflection not stored", slog.Any("error", err))
	}
}

func (a *Agent) snapshot() Status {
	return Status{
		ID:        a.id,
		Name:      a.persona.Name,
		Role:      a.persona.Role,
		Location:  a.persona.Location,
		Faction:   a.persona.Faction,
		Vitals:    a.limbic.Vitals,
		Emotional: a.limbic.Emotional,
		Traits:    a.traits,
	}
}
