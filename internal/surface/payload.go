package surface

import (
	"time"

	"github.com/duskfolk/duskfolk/internal/fleet"
	"github.com/duskfolk/duskfolk/pkg/memory"
)

// Request payloads. Handlers receive exactly one of these per kind; the
// Typed adapter rejects anything else as InvalidArgument.

// InitializeAgentRequest brings a persona to life. PersonaRef defaults to
// AgentID when empty.
type InitializeAgentRequest struct {
	AgentID    string
	PersonaRef string
}

// AgentRequest names one agent. Used by shutdown, status, beliefs,
// relationships, and goals.
type AgentRequest struct {
	AgentID string
}

// AgentMemoriesRequest reads back an agent's memory stream. Kind filters to
// one memory kind when set; Limit defaults service-side.
type AgentMemoriesRequest struct {
	AgentID string
	Kind    string
	Limit   int
}

// ActionRequest is one player line aimed at one agent.
type ActionRequest struct {
	AgentID    string
	PlayerID   string
	PlayerName string
	Action     string
}

// PlayerRequest names one player.
type PlayerRequest struct {
	PlayerID string
}

// AgentPlayerRequest names an (agent, player) pair.
type AgentPlayerRequest struct {
	AgentID  string
	PlayerID string
}

// ShareMemoriesRequest pushes one agent's knowledge of a player to another.
type ShareMemoriesRequest struct {
	FromAgent string
	ToAgent   string
	PlayerID  string
}

// GossipRequest runs a full rumor-and-topic exchange between two agents.
type GossipRequest struct {
	FromAgent string
	ToAgent   string
}

// WorldRequest carries simulator pacing for start and configure. Zero
// values keep the current settings.
type WorldRequest struct {
	TimeScale    float64
	TickInterval time.Duration
}

// AdvanceRequest fast-forwards the world clock.
type AdvanceRequest struct {
	Hours float64
}

// EventsRequest bounds a read of the retained event log.
type EventsRequest struct {
	Limit int
}

// QuestGenerateRequest mints a quest from an agent, optionally personalised
// to a player's remembered topics.
type QuestGenerateRequest struct {
	AgentID  string
	PlayerID string
}

// QuestAcceptRequest puts a quest in a player's hands.
type QuestAcceptRequest struct {
	QuestID  string
	PlayerID string
}

// QuestRequest names one quest.
type QuestRequest struct {
	QuestID string
}

// ChainCreateRequest starts a faction-flavored quest chain offer.
type ChainCreateRequest struct {
	AgentID  string
	Faction  string
	PlayerID string
}

// ChainRequest names one chain. Used by get and advance.
type ChainRequest struct {
	ChainID string
}

// ChainStartRequest commits a player to a chain.
type ChainStartRequest struct {
	ChainID  string
	PlayerID string
}

// TradeEstablishRequest opens a trade route between two agents.
type TradeEstablishRequest struct {
	FromAgent    string
	ToAgent      string
	FromLocation string
	ToLocation   string
}

// TradeListRequest filters routes by status; empty matches all.
type TradeListRequest struct {
	Status string
}

// RouteRequest names one trade route. Used by execute, disrupt, restore.
type RouteRequest struct {
	RouteID string
}

// BattleInitiateRequest opens a territory battle.
type BattleInitiateRequest struct {
	Territory       string
	AttackerFaction string
}

// BattleRequest names one pending battle.
type BattleRequest struct {
	BattleID string
}

// BattlesRequest reads a territory's battle history.
type BattlesRequest struct {
	Territory string
	Limit     int
}

// FactionRequest names one faction.
type FactionRequest struct {
	Name string
}

// BatchInitRequest registers many agents in one call.
type BatchInitRequest struct {
	AgentIDs []string
}

// BatchInteractRequest runs many player actions in one call.
type BatchInteractRequest struct {
	Interactions []ActionRequest
}

// BulkAgentDataRequest reads per-agent rollups in one round trip.
type BulkAgentDataRequest struct {
	AgentIDs []string
}

// PageRequest is a limit/offset window over a listing.
type PageRequest struct {
	Limit  int
	Offset int
}

// ZoneRegisterRequest places an agent in a zone for tier scheduling.
type ZoneRegisterRequest struct {
	AgentID string
	Zone    string
}

// ZoneRequest names one zone.
type ZoneRequest struct {
	Zone string
}

// LocationUpdateRequest records an entity position. Kind is "agent" or
// "player".
type LocationUpdateRequest struct {
	Kind string
	ID   string
	X    float64
	Y    float64
	Z    float64
	Zone string
}

// NearbyRequest finds conversation candidates around a player.
type NearbyRequest struct {
	PlayerID    string
	MaxDistance float64
}

// ConversationStartRequest opens a group conversation. Empty AgentIDs
// auto-discovers nearby agents.
type ConversationStartRequest struct {
	PlayerID string
	AgentIDs []string
}

// ConversationMessageRequest is one player line into a group.
type ConversationMessageRequest struct {
	GroupID    string
	PlayerID   string
	PlayerName string
	Text       string
}

// ConversationMemberRequest adds or removes one participant.
type ConversationMemberRequest struct {
	GroupID string
	AgentID string
}

// ConversationRequest names one group. Used by end and get.
type ConversationRequest struct {
	GroupID string
}

// SubscribeRequest attaches a consumer to one event stream. Buffer sizes
// the delivery channel; a full channel drops events rather than blocking.
type SubscribeRequest struct {
	Stream string
	Buffer int
}

// Response payloads that aggregate across services. Operations whose owning
// service already returns a typed result (fleet.InteractionResult,
// agent.Status, civ.Chain, ...) return that type directly.

// Ack acknowledges an operation that has no richer payload.
type Ack struct {
	Status string
}

// ShareMemoriesResponse reports how many topics crossed over.
type ShareMemoriesResponse struct {
	Shared int
}

// SweepResponse reports one conversation cleanup pass.
type SweepResponse struct {
	Swept int
}

// RelationView is one inter-agent relation edge with its label resolved.
type RelationView struct {
	Edge  memory.Relation
	Label string
}

// PlayerMemoryView is everything one agent holds about one player: direct
// topics, secondhand topics, the reputation edge, and heard rumors.
type PlayerMemoryView struct {
	AgentID    string
	PlayerID   string
	Topics     []memory.Topic
	Heard      []memory.SharedTopic
	Rumors     []memory.Rumor
	Reputation float64
}

// Page carries the window echoed back with every paginated response.
type Page struct {
	Limit  int
	Offset int
	Total  int64
}

// AgentsPage is one window of the fleet listing.
type AgentsPage struct {
	Page
	Agents []fleet.AgentSummary
}

// PlayersPage is one window of known players, most recently seen first.
type PlayersPage struct {
	Page
	Players []memory.Player
}

// QuestsPage is one window of all quests, newest first.
type QuestsPage struct {
	Page
	Quests []memory.Quest
}

// BatchInitResult reports one agent's registration inside batch.init.
type BatchInitResult struct {
	AgentID string
	Status  string
	Err     string
}

// BatchInitResponse summarises a batch registration.
type BatchInitResponse struct {
	Initialized int
	Errors      int
	Results     []BatchInitResult
}

// BatchInteractResponse summarises a batch of player actions. Results and
// ErrorDetails are index-aligned with the request's interactions; a failed
// interaction leaves a zero-value result at its slot.
type BatchInteractResponse struct {
	Processed    int
	Errors       int
	Results      []fleet.InteractionResult
	ErrorDetails []string
	ElapsedMs    int64
}

// ZoneTickResponse reports one zone scheduling pass: who lives there and
// which of them are due an autonomous beat.
type ZoneTickResponse struct {
	Zone   string
	Agents []string
	Due    []string
}

// UnsubscribeRequest detaches one subscription by its ID.
type UnsubscribeRequest struct {
	SubscriptionID string
}

// Subscription is a live attachment to one event stream. Cancel is
// idempotent and releases the subscriber slot; events.unsubscribe with the
// ID does the same thing for callers that cannot hold the func.
type Subscription struct {
	ID     string
	Stream string
	Events <-chan fleet.Event
	Cancel func()
}
