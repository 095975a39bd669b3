package group

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/duskfolk/duskfolk/pkg/memory"
	"github.com/duskfolk/duskfolk/pkg/provider/llm"
)

const (
	// orchestrateTimeout bounds one speaker-selection call. A slow
	// orchestrator falls back to the longest-silent participant rather
	// than stalling the whole exchange.
	orchestrateTimeout = 15 * time.Second

	orchestrateTemperature = 0.5
	orchestrateMaxTokens   = 400
)

const orchestrateSystemPrompt = `You orchestrate a group conversation between NPCs in a survival game.
Given the participants, the tension level, and the recent exchange, decide
which NPCs respond to the player's latest line. Respond with ONLY a JSON
object:
{"next_speakers": [{"agent_id": "...", "response_type": "...", "urgency": 0.0}],
 "tension_change": 0.0,
 "reasoning": "..."}
response_type is one of direct_reply, agreement, disagreement, elaboration,
interruption, redirect, silent. tension_change is in [-0.1, 0.1]. Pick one to
three speakers; use "silent" for NPCs who would stay out of it.`

// orchestration is the decoded outcome of one speaker-selection call.
type orchestration struct {
	plans         []plan
	tensionChange float64
	reasoning     string
}

type wireSpeaker struct {
	AgentID      string  `json:"agent_id"`
	ResponseType string  `json:"response_type"`
	Urgency      float64 `json:"urgency"`
}

type wireOrchestration struct {
	NextSpeakers  []wireSpeaker `json:"next_speakers"`
	TensionChange float64       `json:"tension_change"`
	Reasoning     string        `json:"reasoning"`
}

// orchestrate asks the model who speaks next on an unaddressed line. Every
// failure path returns an empty orchestration; the caller falls back to the
// longest-silent participant.
func (m *Manager) orchestrate(ctx context.Context, members []Participant, recent []Line, tension float64, text string) orchestration {
	if m.provider == nil {
		return orchestration{}
	}

	ctx, cancel := context.WithTimeout(ctx, orchestrateTimeout)
	defer cancel()

	resp, err := m.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: orchestrateSystemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: orchestratePrompt(members, recent, tension, text)},
		},
		Temperature: orchestrateTemperature,
		MaxTokens:   orchestrateMaxTokens,
	})
	if err != nil {
		m.logger.Warn("orchestrator call failed", slog.Any("error", err))
		return orchestration{}
	}

	decoded, err := decodeOrchestration(resp.Content, members)
	if err != nil {
		m.logger.Warn("orchestrator response rejected", slog.Any("error", err))
		return orchestration{}
	}
	return decoded
}

// orchestratePrompt lays out the conversation state for speaker selection.
func orchestratePrompt(members []Participant, recent []Line, tension float64, text string) string {
	var b strings.Builder
	b.WriteString("Participants:\n")
	for _, p := range members {
		fmt.Fprintf(&b, "- %s (agent_id: %s, role: %s, lines spoken: %d)\n",
			p.Name, p.AgentID, p.Role, p.Messages)
	}
	fmt.Fprintf(&b, "Tension: %.2f (%s)\n", tension, tensionLabel(tension))
	if len(recent) > 0 {
		b.WriteString("Recent exchange:\n")
		for _, line := range recent {
			b.WriteString("  " + line.Speaker + ": " + truncate(line.Text, historyLineLimit) + "\n")
		}
	}
	b.WriteString("Player's line (addressed to no one in particular): " + text)
	return b.String()
}

// decodeOrchestration validates the model's speaker selection: speakers must
// be participants, response types must be known, and the tension change is
// clamped into its band. Silent picks are kept so the caller can skip them
// without falling back.
func decodeOrchestration(raw string, members []Participant) (orchestration, error) {
	var w wireOrchestration
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &w); err != nil {
		return orchestration{}, fmt.Errorf("decode orchestration: %w", err)
	}

	byID := make(map[string]Participant, len(members))
	for _, p := range members {
		byID[p.AgentID] = p
	}

	out := orchestration{
		tensionChange: memory.Clamp(w.TensionChange, -0.1, 0.1),
		reasoning:     w.Reasoning,
	}
	for _, sp := range w.NextSpeakers {
		p, ok := byID[sp.AgentID]
		if !ok {
			continue
		}
		kind := ResponseType(sp.ResponseType)
		if !validResponseType(kind) {
			continue
		}
		out.plans = append(out.plans, plan{
			agentID: p.AgentID,
			name:    p.Name,
			kind:    kind,
			urgency: memory.Clamp(sp.Urgency, 0, 1),
		})
	}
	if len(out.plans) == 0 {
		return orchestration{}, fmt.Errorf("orchestration named no valid speakers")
	}
	return out, nil
}

func validResponseType(kind ResponseType) bool {
	switch kind {
	case ReplyDirect, ReplyAgreement, ReplyDisagreement, ReplyElaboration,
		ReplyInterruption, ReplyRedirect, ReplySilent:
		return true
	}
	return false
}

// stripCodeFence removes a surrounding markdown fence from a model response.
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[i+1:]
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
