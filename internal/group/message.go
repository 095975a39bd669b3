package group

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/duskfolk/duskfolk/internal/agent"
	"github.com/duskfolk/duskfolk/pkg/types"
)

const (
	// historyContextLines is how much transcript a responder sees.
	historyContextLines = 3

	// historyLineLimit truncates long transcript lines in the context block.
	historyLineLimit = 80
)

// Tension labels for the responder context block.
const (
	tensionHigh     = 0.6
	tensionModerate = 0.3
)

// Response is one NPC's contribution to a group exchange.
type Response struct {
	AgentID string               `json:"agent_id"`
	Name    string               `json:"name"`
	Type    ResponseType         `json:"type"`
	Urgency float64              `json:"urgency"`
	Frame   types.CognitiveFrame `json:"frame"`
}

// MessageResult is the outcome of one player line in a group.
type MessageResult struct {
	GroupID   string     `json:"group_id"`
	Addressed string     `json:"addressed,omitempty"` // agent ID, when named
	Tension   float64    `json:"tension"`
	Reasoning string     `json:"reasoning,omitempty"`
	Responses []Response `json:"responses"`
}

// plan is one chosen responder before its reactive cycle runs.
type plan struct {
	agentID string
	name    string
	kind    ResponseType
	urgency float64
}

// Message feeds a player line into a conversation and collects the NPC
// responses. The addressed participant (resolved phonetically from the
// leading tokens) answers directly and others may chime in by personality;
// an unaddressed line goes to the orchestrator to pick the next speakers.
// Responders whose cycle produces no dialogue are dropped silently.
func (m *Manager) Message(ctx context.Context, groupID, playerID, playerName, text string) (MessageResult, error) {
	m.mu.Lock()
	conv, ok := m.groups[groupID]
	if !ok {
		m.mu.Unlock()
		return MessageResult{}, ErrGroupNotFound
	}
	if !conv.active {
		m.mu.Unlock()
		return MessageResult{}, ErrGroupInactive
	}
	now := time.Now()
	conv.history = append(conv.history, Line{Speaker: playerName, Text: text, At: now})
	conv.lastActivity = now

	members := make([]Participant, 0, len(conv.participants))
	for _, id := range conv.order {
		p := conv.participants[id]
		members = append(members, Participant{
			AgentID: p.id, Name: p.name, Role: p.role, LastSpoke: p.lastSpoke,
		})
	}
	recent := lastLines(conv.history, historyContextLines)
	tension := conv.tension
	m.mu.Unlock()

	result := MessageResult{GroupID: groupID, Tension: tension}

	var plans []plan
	if addressed, ok := m.resolveAddressee(text, members); ok {
		result.Addressed = addressed.AgentID
		plans = append(plans, plan{
			agentID: addressed.AgentID,
			name:    addressed.Name,
			kind:    ReplyDirect,
			urgency: 1.0,
		})
		plans = append(plans, m.chimeIns(ctx, addressed.AgentID, members)...)
	} else {
		orch := m.orchestrate(ctx, members, recent, tension, text)
		result.Reasoning = orch.reasoning
		tension = clamp01(tension + orch.tensionChange)
		result.Tension = tension
		plans = orch.plans
		if len(plans) == 0 {
			if longest := longestSilent(members); longest != nil {
				plans = append(plans, plan{
					agentID: longest.AgentID,
					name:    longest.Name,
					kind:    ReplyDirect,
					urgency: fallbackUrgency,
				})
			}
		}
	}

	for _, p := range plans {
		if p.kind == ReplySilent {
			continue
		}
		ag, ok := m.dir.AgentByID(p.agentID)
		if !ok {
			continue
		}
		perception := m.groupPerception(p, members, recent, tension, playerName, text)
		res, err := ag.Act(ctx, agent.ActionInput{
			PlayerID:   playerID,
			PlayerName: playerName,
			Perception: perception,
		})
		if err != nil {
			m.logger.Warn("group responder failed",
				slog.String("group_id", groupID),
				slog.String("agent_id", p.agentID),
				slog.Any("error", err))
			continue
		}
		if strings.TrimSpace(res.Frame.Dialogue) == "" {
			continue
		}
		result.Responses = append(result.Responses, Response{
			AgentID: p.agentID,
			Name:    p.name,
			Type:    p.kind,
			Urgency: p.urgency,
			Frame:   res.Frame,
		})
	}

	m.mu.Lock()
	if conv, ok := m.groups[groupID]; ok {
		conv.tension = tension
		now := time.Now()
		for _, r := range result.Responses {
			conv.history = append(conv.history, Line{Speaker: r.Name, Text: r.Frame.Dialogue, At: now})
			if p, ok := conv.participants[r.AgentID]; ok {
				p.lastSpoke = now
				p.messages++
				p.role = RoleSpeaker
			}
		}
		if len(result.Responses) > 0 {
			conv.lastActivity = now
		}
	}
	m.mu.Unlock()

	return result, nil
}

// resolveAddressee maps a phonetic name hit back to the participant.
func (m *Manager) resolveAddressee(text string, members []Participant) (Participant, bool) {
	names := make([]string, len(members))
	for i, p := range members {
		names[i] = p.Name
	}
	name, _, ok := m.matcher.Addressee(text, names)
	if !ok {
		return Participant{}, false
	}
	for _, p := range members {
		if p.Name == name {
			return p, true
		}
	}
	return Participant{}, false
}

// chimeIns rolls each unaddressed participant against its personality:
// curious, empathetic, and aggressive NPCs join uninvited. Capped at two.
func (m *Manager) chimeIns(ctx context.Context, addressedID string, members []Participant) []plan {
	var out []plan
	for _, p := range members {
		if len(out) == maxChimeIns {
			break
		}
		if p.AgentID == addressedID {
			continue
		}
		ag, ok := m.dir.AgentByID(p.AgentID)
		if !ok {
			continue
		}
		st, err := ag.Status(ctx)
		if err != nil {
			continue
		}
		t := st.Traits
		chance := (t.Curiosity+t.Empathy)/4 + t.Aggression*0.2
		if !m.roll(chance) {
			continue
		}
		out = append(out, plan{
			agentID: p.AgentID,
			name:    p.Name,
			kind:    m.chimeInType(t),
			urgency: chimeInUrgency,
		})
	}
	return out
}

// chimeInType picks how an uninvited responder relates to the line:
// aggressive NPCs push back, empathetic ones agree, the rest elaborate.
func (m *Manager) chimeInType(t types.TraitSet) ResponseType {
	switch {
	case t.Aggression > 0.6:
		if m.roll(0.5) {
			return ReplyDisagreement
		}
		return ReplyElaboration
	case t.Empathy > 0.6:
		if m.roll(0.5) {
			return ReplyAgreement
		}
		return ReplyElaboration
	default:
		return ReplyElaboration
	}
}

// groupPerception builds the perception a responder's reactive cycle sees:
// who else is present, how heated things are, the recent exchange, and how
// this response should relate to the conversation.
func (m *Manager) groupPerception(p plan, members []Participant, recent []Line, tension float64, playerName, text string) string {
	var others []string
	for _, o := range members {
		if o.AgentID != p.agentID {
			others = append(others, o.Name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[Group conversation with: %s]\n", strings.Join(others, ", "))
	fmt.Fprintf(&b, "[Mood of the group: %s]\n", tensionLabel(tension))
	if len(recent) > 0 {
		b.WriteString("[Recent exchange:]\n")
		for _, line := range recent {
			b.WriteString("  " + line.Speaker + ": " + truncate(line.Text, historyLineLimit) + "\n")
		}
	}
	b.WriteString("[" + typeInstruction(p.kind) + "]\n")
	fmt.Fprintf(&b, "%s says: %s", playerName, text)
	return b.String()
}

var typeInstructions = map[ResponseType]string{
	ReplyDirect:       "You were addressed directly. Answer the line aimed at you.",
	ReplyAgreement:    "You agree with what was just said. Back it up briefly.",
	ReplyDisagreement: "You disagree with what was just said. Push back.",
	ReplyElaboration:  "Add something of your own to what was just said.",
	ReplyInterruption: "Cut in before anyone else can answer.",
	ReplyRedirect:     "Steer the conversation somewhere you'd rather it went.",
}

func typeInstruction(kind ResponseType) string {
	if s, ok := typeInstructions[kind]; ok {
		return s
	}
	return typeInstructions[ReplyDirect]
}

func tensionLabel(tension float64) string {
	switch {
	case tension > tensionHigh:
		return "high tension"
	case tension > tensionModerate:
		return "moderate tension"
	default:
		return "calm"
	}
}

// longestSilent picks the participant who has gone the longest without
// speaking. Never-spoke beats any timestamp; ties break by join order, which
// members preserves.
func longestSilent(members []Participant) *Participant {
	var pick *Participant
	for i := range members {
		p := &members[i]
		if pick == nil {
			pick = p
			continue
		}
		switch {
		case p.LastSpoke.IsZero() && !pick.LastSpoke.IsZero():
			pick = p
		case !p.LastSpoke.IsZero() && !pick.LastSpoke.IsZero() && p.LastSpoke.Before(pick.LastSpoke):
			pick = p
		}
	}
	return pick
}

func lastLines(history []Line, n int) []Line {
	if len(history) <= n {
		return append([]Line(nil), history...)
	}
	return append([]Line(nil), history[len(history)-n:]...)
}

// truncate cuts s to at most limit bytes on a rune boundary, never
// splitting a multi-byte character.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
