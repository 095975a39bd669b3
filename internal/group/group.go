// Package group runs multi-NPC conversations: a location registry for
// proximity-based participant discovery, bounded conversation groups with
// join/leave lifecycle, and a message flow that decides which NPCs answer a
// player line — by phonetic address detection when the player names someone,
// by an orchestrating model call when they don't.
//
// The package drives agents through their normal reactive cycles; it owns no
// cognitive state of its own beyond the conversation transcript and a tension
// score per group.
package group

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/duskfolk/duskfolk/internal/agent"
	"github.com/duskfolk/duskfolk/internal/phonetic"
	"github.com/duskfolk/duskfolk/pkg/provider/llm"
)

const (
	// maxGroupSize caps participants per conversation.
	maxGroupSize = 6

	// conversationTimeout is the idle span after which a cleanup sweep
	// deactivates a group.
	conversationTimeout = 300 * time.Second

	// maxChimeIns bounds how many unaddressed participants may pile onto an
	// addressed line.
	maxChimeIns = 2

	// chimeInUrgency is the urgency handed to uninvited responders.
	chimeInUrgency = 0.6

	// fallbackUrgency is used when the orchestrator fails and the
	// longest-silent participant answers instead.
	fallbackUrgency = 0.7
)

// Participant roles within a conversation.
type Role string

const (
	RoleSpeaker     Role = "speaker"
	RoleListener    Role = "listener"
	RoleInterjector Role = "interjector"
	RoleObserver    Role = "observer"
)

// ResponseType labels how an NPC's line relates to the one before it.
type ResponseType string

const (
	ReplyDirect       ResponseType = "direct_reply"
	ReplyAgreement    ResponseType = "agreement"
	ReplyDisagreement ResponseType = "disagreement"
	ReplyElaboration  ResponseType = "elaboration"
	ReplyInterruption ResponseType = "interruption"
	ReplyRedirect     ResponseType = "redirect"
	ReplySilent       ResponseType = "silent"
)

var (
	ErrGroupNotFound  = errors.New("group: not found")
	ErrGroupInactive  = errors.New("group: conversation ended")
	ErrGroupFull      = errors.New("group: at capacity")
	ErrAlreadyMember  = errors.New("group: agent already in conversation")
	ErrNotMember      = errors.New("group: agent not in conversation")
	ErrNoParticipants = errors.New("group: no participants available")
	ErrAgentUnknown   = errors.New("group: agent not registered")
)

// Directory resolves agent IDs to live runtime handles. Satisfied by the
// fleet coordinator.
type Directory interface {
	AgentByID(id string) (*agent.Agent, bool)
}

// Line is one transcript entry.
type Line struct {
	Speaker string    `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// participant is the mutable per-member state.
type participant struct {
	id        string
	name      string
	role      Role
	joinedAt  time.Time
	lastSpoke time.Time
	messages  int
}

// conversation is one live group. All fields are guarded by the manager lock.
type conversation struct {
	id           string
	active       bool
	tension      float64
	createdAt    time.Time
	lastActivity time.Time
	participants map[string]*participant
	order        []string
	history      []Line
}

// Participant is the exported view of one member.
type Participant struct {
	AgentID   string    `json:"agent_id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Messages  int       `json:"messages"`
	LastSpoke time.Time `json:"last_spoke,omitzero"`
}

// Snapshot is the exported view of one conversation.
type Snapshot struct {
	ID           string        `json:"id"`
	Active       bool          `json:"active"`
	Tension      float64       `json:"tension"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActivity time.Time     `json:"last_activity"`
	Participants []Participant `json:"participants"`
	History      []Line        `json:"history"`
}

// Stats summarises the manager.
type Stats struct {
	ActiveGroups int     `json:"active_groups"`
	TotalGroups  int     `json:"total_groups"`
	Participants int     `json:"participants"`
	AvgTension   float64 `json:"avg_tension"`
	MaxGroupSize int     `json:"max_group_size"`
	TimeoutSecs  int     `json:"timeout_secs"`
}

// Manager owns every conversation. Safe for concurrent use.
type Manager struct {
	dir       Directory
	provider  llm.Provider
	matcher   *phonetic.Matcher
	locations *Locations
	logger    *slog.Logger

	mu     sync.Mutex
	groups map[string]*conversation

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures a [Manager].
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithRand injects a seeded random source so chime-in rolls are deterministic
// under test.
func WithRand(rng *rand.Rand) Option {
	return func(m *Manager) {
		if rng != nil {
			m.rng = rng
		}
	}
}

// WithMatcher overrides the addressee matcher, e.g. with tuned thresholds.
func WithMatcher(pm *phonetic.Matcher) Option {
	return func(m *Manager) {
		if pm != nil {
			m.matcher = pm
		}
	}
}

// NewManager builds a conversation manager. provider drives the speaker
// orchestrator; a nil provider always takes the longest-silent fallback.
func NewManager(dir Directory, provider llm.Provider, opts ...Option) *Manager {
	m := &Manager{
		dir:       dir,
		provider:  provider,
		matcher:   phonetic.New(),
		locations: NewLocations(),
		logger:    slog.Default(),
		groups:    make(map[string]*conversation),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Locations exposes the position registry.
func (m *Manager) Locations() *Locations { return m.locations }

// Start opens a conversation. With explicit agentIDs those agents join; with
// none, participants are auto-discovered from the agents nearest the player.
// Everyone starts as a listener.
func (m *Manager) Start(playerID string, agentIDs []string) (Snapshot, error) {
	if len(agentIDs) == 0 {
		for _, n := range m.locations.Nearby(playerID, 0) {
			agentIDs = append(agentIDs, n.AgentID)
		}
	}
	if len(agentIDs) == 0 {
		return Snapshot{}, ErrNoParticipants
	}
	if len(agentIDs) > maxGroupSize {
		agentIDs = agentIDs[:maxGroupSize]
	}

	now := time.Now()
	conv := &conversation{
		id:           "conv_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		active:       true,
		createdAt:    now,
		lastActivity: now,
		participants: make(map[string]*participant),
	}
	for _, id := range agentIDs {
		if _, ok := conv.participants[id]; ok {
			continue
		}
		ag, ok := m.dir.AgentByID(id)
		if !ok {
			return Snapshot{}, fmt.Errorf("group: participant %q: %w", id, ErrAgentUnknown)
		}
		conv.participants[id] = &participant{
			id:       id,
			name:     ag.Persona().Name,
			role:     RoleListener,
			joinedAt: now,
		}
		conv.order = append(conv.order, id)
	}

	m.mu.Lock()
	m.groups[conv.id] = conv
	m.mu.Unlock()

	m.logger.Info("conversation started",
		slog.String("group_id", conv.id),
		slog.Int("participants", len(conv.order)))
	return snapshot(conv), nil
}

// Add joins an agent to a running conversation and notes the arrival in the
// transcript.
func (m *Manager) Add(groupID, agentID string) (Snapshot, error) {
	ag, ok := m.dir.AgentByID(agentID)
	if !ok {
		return Snapshot{}, fmt.Errorf("group: add %q: %w", agentID, ErrAgentUnknown)
	}
	name := ag.Persona().Name

	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.groups[groupID]
	if !ok {
		return Snapshot{}, ErrGroupNotFound
	}
	if !conv.active {
		return Snapshot{}, ErrGroupInactive
	}
	if _, ok := conv.participants[agentID]; ok {
		return Snapshot{}, ErrAlreadyMember
	}
	if len(conv.participants) >= maxGroupSize {
		return Snapshot{}, ErrGroupFull
	}

	now := time.Now()
	conv.participants[agentID] = &participant{
		id:       agentID,
		name:     name,
		role:     RoleListener,
		joinedAt: now,
	}
	conv.order = append(conv.order, agentID)
	conv.history = append(conv.history, Line{
		Speaker: "system",
		Text:    fmt.Sprintf("%s has joined the conversation.", name),
		At:      now,
	})
	conv.lastActivity = now
	return snapshot(conv), nil
}

// Remove drops an agent from a conversation. Removing the last participant
// ends it.
func (m *Manager) Remove(groupID, agentID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.groups[groupID]
	if !ok {
		return Snapshot{}, ErrGroupNotFound
	}
	if _, ok := conv.participants[agentID]; !ok {
		return Snapshot{}, ErrNotMember
	}

	delete(conv.participants, agentID)
	for i, id := range conv.order {
		if id == agentID {
			conv.order = append(conv.order[:i], conv.order[i+1:]...)
			break
		}
	}
	conv.lastActivity = time.Now()
	if len(conv.participants) == 0 {
		conv.active = false
	}
	return snapshot(conv), nil
}

// End deactivates a conversation and returns its final state.
func (m *Manager) End(groupID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.groups[groupID]
	if !ok {
		return Snapshot{}, ErrGroupNotFound
	}
	conv.active = false
	return snapshot(conv), nil
}

// Get returns a conversation's current state.
func (m *Manager) Get(groupID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.groups[groupID]
	if !ok {
		return Snapshot{}, ErrGroupNotFound
	}
	return snapshot(conv), nil
}

// Cleanup deactivates conversations idle past the timeout and drops
// conversations that are already inactive. Returns how many were swept.
func (m *Manager) Cleanup() int {
	cutoff := time.Now().Add(-conversationTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()
	var swept int
	for id, conv := range m.groups {
		switch {
		case !conv.active:
			delete(m.groups, id)
			swept++
		case conv.lastActivity.Before(cutoff):
			conv.active = false
			swept++
		}
	}
	return swept
}

// Stats summarises every tracked conversation.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Stats{
		TotalGroups:  len(m.groups),
		MaxGroupSize: maxGroupSize,
		TimeoutSecs:  int(conversationTimeout.Seconds()),
	}
	var tensionSum float64
	for _, conv := range m.groups {
		if !conv.active {
			continue
		}
		st.ActiveGroups++
		st.Participants += len(conv.participants)
		tensionSum += conv.tension
	}
	if st.ActiveGroups > 0 {
		st.AvgTension = tensionSum / float64(st.ActiveGroups)
	}
	return st
}

// snapshot exports a conversation. Caller holds m.mu (or owns conv
// exclusively, as Start does before publishing it).
func snapshot(conv *conversation) Snapshot {
	s := Snapshot{
		ID:           conv.id,
		Active:       conv.active,
		Tension:      conv.tension,
		CreatedAt:    conv.createdAt,
		LastActivity: conv.lastActivity,
		Participants: make([]Participant, 0, len(conv.participants)),
		History:      append([]Line(nil), conv.history...),
	}
	for _, id := range conv.order {
		p := conv.participants[id]
		s.Participants = append(s.Participants, Participant{
			AgentID:   p.id,
			Name:      p.name,
			Role:      p.role,
			Messages:  p.messages,
			LastSpoke: p.lastSpoke,
		})
	}
	return s
}

func (m *Manager) roll(chance float64) bool {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.Float64() < chance
}
