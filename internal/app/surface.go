package app

import (
	"context"
	"fmt"
	"time"

	"github.com/duskfolk/duskfolk/internal/agent"
	"github.com/duskfolk/duskfolk/internal/civ"
	"github.com/duskfolk/duskfolk/internal/fleet"
	"github.com/duskfolk/duskfolk/internal/group"
	"github.com/duskfolk/duskfolk/internal/scale"
	"github.com/duskfolk/duskfolk/internal/surface"
	"github.com/duskfolk/duskfolk/pkg/memory"
)

// stateReadLimit bounds agent state reads (memories, beliefs) when the
// request leaves the limit unset.
const stateReadLimit = 20

// registerOperations binds every operation kind to its owning service. The
// dispatcher rejects duplicates, so a wiring mistake surfaces at boot.
func (a *App) registerOperations() error {
	d := a.dispatcher
	regs := []struct {
		kind surface.Kind
		h    surface.Handler
	}{
		// Agent lifecycle and state.
		{surface.KindAgentInitialize, surface.Typed(a.opAgentInitialize)},
		{surface.KindAgentShutdown, surface.Typed(a.opAgentShutdown)},
		{surface.KindAgentList, surface.Typed(a.opAgentList)},
		{surface.KindAgentAction, surface.Typed(a.opAgentAction)},
		{surface.KindAgentStatus, surface.Typed(a.opAgentStatus)},
		{surface.KindAgentMemories, surface.Typed(a.opAgentMemories)},
		{surface.KindAgentBeliefs, surface.Typed(a.opAgentBeliefs)},
		{surface.KindAgentRelationships, surface.Typed(a.opAgentRelationships)},
		{surface.KindAgentGoals, surface.Typed(a.opAgentGoals)},

		// Players and the social graph.
		{surface.KindPlayer, surface.Typed(a.opPlayer)},
		{surface.KindPlayers, surface.Typed(a.opPlayers)},
		{surface.KindPlayerMemory, surface.Typed(a.opPlayerMemory)},
		{surface.KindShareMemories, surface.Typed(a.opShareMemories)},
		{surface.KindGossip, surface.Typed(a.opGossip)},

		// World simulation.
		{surface.KindWorldStart, surface.Typed(a.opWorldStart)},
		{surface.KindWorldStop, surface.Typed(a.opWorldStop)},
		{surface.KindWorldStatus, surface.Typed(a.opWorldStatus)},
		{surface.KindWorldTick, surface.Typed(a.opWorldTick)},
		{surface.KindWorldAdvance, surface.Typed(a.opWorldAdvance)},
		{surface.KindWorldEvents, surface.Typed(a.opWorldEvents)},
		{surface.KindWorldConfigure, surface.Typed(a.opWorldConfigure)},

		// Quests, chains, and the economy.
		{surface.KindQuestGenerate, surface.Typed(a.opQuestGenerate)},
		{surface.KindQuestAccept, surface.Typed(a.opQuestAccept)},
		{surface.KindQuestComplete, surface.Typed(a.opQuestComplete)},
		{surface.KindQuestsAvailable, surface.Typed(a.opQuestsAvailable)},
		{surface.KindChainCreate, surface.Typed(a.opChainCreate)},
		{surface.KindChainGet, surface.Typed(a.opChainGet)},
		{surface.KindChainStart, surface.Typed(a.opChainStart)},
		{surface.KindChainAdvance, surface.Typed(a.opChainAdvance)},
		{surface.KindTradeEstablish, surface.Typed(a.opTradeEstablish)},
		{surface.KindTradeList, surface.Typed(a.opTradeList)},
		{surface.KindTradeExecute, surface.Typed(a.opTradeExecute)},
		{surface.KindTradeDisrupt, surface.Typed(a.opTradeDisrupt)},
		{surface.KindTradeRestore, surface.Typed(a.opTradeRestore)},
		{surface.KindTerritoryControl, surface.Typed(a.opTerritoryControl)},
		{surface.KindBattleInitiate, surface.Typed(a.opBattleInitiate)},
		{surface.KindBattleResolve, surface.Typed(a.opBattleResolve)},
		{surface.KindBattles, surface.Typed(a.opBattles)},

		// Factions.
		{surface.KindFactionsList, surface.Typed(a.opFactionsList)},
		{surface.KindFactionEvents, surface.Typed(a.opFactionEvents)},

		// Scaling substrate.
		{surface.KindBatchInit, surface.Typed(a.opBatchInit)},
		{surface.KindBatchInteract, surface.Typed(a.opBatchInteract)},
		{surface.KindBulkAgentData, surface.Typed(a.opBulkAgentData)},
		{surface.KindPaginatedAgents, surface.Typed(a.opPaginatedAgents)},
		{surface.KindPaginatedPlayers, surface.Typed(a.opPaginatedPlayers)},
		{surface.KindPaginatedQuests, surface.Typed(a.opPaginatedQuests)},
		{surface.KindScalingStats, surface.Typed(a.opScalingStats)},
		{surface.KindScalingOptimize, surface.Typed(a.opScalingOptimize)},
		{surface.KindScalingCache, surface.Typed(a.opScalingCache)},
		{surface.KindScalingCacheClear, surface.Typed(a.opScalingCacheClear)},
		{surface.KindZoneRegister, surface.Typed(a.opZoneRegister)},
		{surface.KindZoneTick, surface.Typed(a.opZoneTick)},

		// Group conversations and proximity.
		{surface.KindLocationUpdate, surface.Typed(a.opLocationUpdate)},
		{surface.KindNearby, surface.Typed(a.opNearby)},
		{surface.KindConversationStart, surface.Typed(a.opConversationStart)},
		{surface.KindConversationMessage, surface.Typed(a.opConversationMessage)},
		{surface.KindConversationAdd, surface.Typed(a.opConversationAdd)},
		{surface.KindConversationRemove, surface.Typed(a.opConversationRemove)},
		{surface.KindConversationEnd, surface.Typed(a.opConversationEnd)},
		{surface.KindConversationGet, surface.Typed(a.opConversationGet)},
		{surface.KindConversationStats, surface.Typed(a.opConversationStats)},
		{surface.KindConversationCleanup, surface.Typed(a.opConversationCleanup)},

		// Event streaming.
		{surface.KindEventsSubscribe, surface.Typed(a.opEventsSubscribe)},
		{surface.KindEventsUnsubscribe, surface.Typed(a.opEventsUnsubscribe)},
	}
	for _, r := range regs {
		if err := d.Register(r.kind, r.h); err != nil {
			return err
		}
	}
	return nil
}

// ── Agent lifecycle and state ────────────────────────────────────────────

func (a *App) opAgentInitialize(ctx context.Context, req surface.InitializeAgentRequest) (fleet.RegisterResult, error) {
	if req.AgentID == "" {
		return fleet.RegisterResult{}, fmt.Errorf("%w: agent_id is required", surface.ErrInvalidArgument)
	}
	return a.fleet.Register(ctx, req.AgentID, req.PersonaRef)
}

func (a *App) opAgentShutdown(ctx context.Context, req surface.AgentRequest) (surface.Ack, error) {
	if err := a.fleet.Unregister(ctx, req.AgentID); err != nil {
		return surface.Ack{}, err
	}
	return surface.Ack{Status: "shutdown"}, nil
}

func (a *App) opAgentList(ctx context.Context, _ struct{}) ([]fleet.AgentSummary, error) {
	return a.fleet.List(ctx), nil
}

func (a *App) opAgentAction(ctx context.Context, req surface.ActionRequest) (fleet.InteractionResult, error) {
	if req.Action == "" {
		return fleet.InteractionResult{}, fmt.Errorf("%w: action text is required", surface.ErrInvalidArgument)
	}
	return a.fleet.PlayerAction(ctx, req.AgentID, req.PlayerID, req.PlayerName, req.Action)
}

func (a *App) opAgentStatus(ctx context.Context, req surface.AgentRequest) (agent.Status, error) {
	ag, err := a.fleet.Agent(req.AgentID)
	if err != nil {
		return agent.Status{}, err
	}
	return ag.Status(ctx)
}

func (a *App) opAgentMemories(ctx context.Context, req surface.AgentMemoriesRequest) ([]memory.Memory, error) {
	if _, err := a.fleet.Agent(req.AgentID); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = stateReadLimit
	}
	if req.Kind != "" {
		return a.store.MemoriesByKind(ctx, req.AgentID, memory.Kind(req.Kind), limit)
	}
	return a.store.RecentMemories(ctx, req.AgentID, limit)
}

func (a *App) opAgentBeliefs(ctx context.Context, req surface.AgentRequest) ([]memory.Belief, error) {
	if _, err := a.fleet.Agent(req.AgentID); err != nil {
		return nil, err
	}
	return a.store.Beliefs(ctx, req.AgentID, stateReadLimit)
}

func (a *App) opAgentRelationships(ctx context.Context, req surface.AgentRequest) ([]surface.RelationView, error) {
	if _, err := a.fleet.Agent(req.AgentID); err != nil {
		return nil, err
	}
	edges, err := a.social.RelationsOf(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}
	out := make([]surface.RelationView, 0, len(edges))
	for _, e := range edges {
		out = append(out, surface.RelationView{Edge: e, Label: e.Label()})
	}
	return out, nil
}

func (a *App) opAgentGoals(ctx context.Context, req surface.AgentRequest) ([]civ.Goal, error) {
	if _, err := a.fleet.Agent(req.AgentID); err != nil {
		return nil, err
	}
	return a.goals.For(req.AgentID, ""), nil
}

// ── Players and the social graph ─────────────────────────────────────────

func (a *App) opPlayer(ctx context.Context, req surface.PlayerRequest) (memory.Player, error) {
	return a.store.Player(ctx, req.PlayerID)
}

func (a *App) opPlayers(ctx context.Context, req surface.PageRequest) (surface.PlayersPage, error) {
	players, total, err := a.store.Players(ctx, req.Limit, req.Offset)
	if err != nil {
		return surface.PlayersPage{}, err
	}
	return surface.PlayersPage{
		Page:    surface.Page{Limit: req.Limit, Offset: req.Offset, Total: total},
		Players: players,
	}, nil
}

func (a *App) opPlayerMemory(ctx context.Context, req surface.AgentPlayerRequest) (surface.PlayerMemoryView, error) {
	if _, err := a.fleet.Agent(req.AgentID); err != nil {
		return surface.PlayerMemoryView{}, err
	}
	view := surface.PlayerMemoryView{AgentID: req.AgentID, PlayerID: req.PlayerID}

	var err error
	view.Topics, err = a.store.TopicsForPlayer(ctx, req.AgentID, req.PlayerID, 0, 50)
	if err != nil {
		return surface.PlayerMemoryView{}, err
	}
	view.Heard, err = a.store.SharedTopicsFor(ctx, req.AgentID, req.PlayerID, 50)
	if err != nil {
		return surface.PlayerMemoryView{}, err
	}
	view.Rumors, _, err = a.social.RumorsHeard(ctx, req.AgentID, req.PlayerID)
	if err != nil {
		return surface.PlayerMemoryView{}, err
	}
	view.Reputation, err = a.social.ReputationOf(ctx, req.PlayerID, req.AgentID)
	if err != nil {
		return surface.PlayerMemoryView{}, err
	}
	return view, nil
}

func (a *App) opShareMemories(ctx context.Context, req surface.ShareMemoriesRequest) (surface.ShareMemoriesResponse, error) {
	n, err := a.fleet.ShareMemories(ctx, req.FromAgent, req.ToAgent, req.PlayerID)
	if err != nil {
		return surface.ShareMemoriesResponse{}, err
	}
	return surface.ShareMemoriesResponse{Shared: n}, nil
}

func (a *App) opGossip(ctx context.Context, req surface.GossipRequest) (fleet.GossipReport, error) {
	return a.fleet.Gossip(ctx, req.FromAgent, req.ToAgent)
}

// ── World simulation ─────────────────────────────────────────────────────

func (a *App) opWorldStart(ctx context.Context, req surface.WorldRequest) (fleet.WorldStatus, error) {
	if err := a.fleet.StartWorld(req.TimeScale, req.TickInterval); err != nil {
		return fleet.WorldStatus{}, err
	}
	return a.fleet.WorldStatus(), nil
}

func (a *App) opWorldStop(ctx context.Context, _ struct{}) (fleet.WorldStatus, error) {
	if err := a.fleet.StopWorld(); err != nil {
		return fleet.WorldStatus{}, err
	}
	return a.fleet.WorldStatus(), nil
}

func (a *App) opWorldStatus(ctx context.Context, _ struct{}) (fleet.WorldStatus, error) {
	return a.fleet.WorldStatus(), nil
}

func (a *App) opWorldTick(ctx context.Context, _ struct{}) ([]fleet.Event, error) {
	return a.fleet.Tick(ctx)
}

func (a *App) opWorldAdvance(ctx context.Context, req surface.AdvanceRequest) ([]fleet.Event, error) {
	events, err := a.fleet.Advance(ctx, req.Hours)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", surface.ErrInvalidArgument, err)
	}
	return events, nil
}

func (a *App) opWorldEvents(ctx context.Context, req surface.EventsRequest) ([]fleet.Event, error) {
	return a.fleet.WorldEvents(req.Limit), nil
}

func (a *App) opWorldConfigure(ctx context.Context, req surface.WorldRequest) (fleet.WorldStatus, error) {
	a.fleet.ConfigureWorld(req.TimeScale, req.TickInterval)
	return a.fleet.WorldStatus(), nil
}

// ── Quests, chains, and the economy ──────────────────────────────────────

func (a *App) opQuestGenerate(ctx context.Context, req surface.QuestGenerateRequest) (memory.Quest, error) {
	if _, err := a.fleet.Agent(req.AgentID); err != nil {
		return memory.Quest{}, err
	}
	var known []memory.Topic
	if req.PlayerID != "" {
		var err error
		known, err = a.store.TopicsForPlayer(ctx, req.AgentID, req.PlayerID, 0, 5)
		if err != nil {
			return memory.Quest{}, err
		}
	}
	return a.quests.Generate(ctx, req.AgentID, req.PlayerID, known)
}

func (a *App) opQuestAccept(ctx context.Context, req surface.QuestAcceptRequest) (memory.Quest, error) {
	return a.quests.Accept(ctx, req.QuestID, req.PlayerID)
}

func (a *App) opQuestComplete(ctx context.Context, req surface.QuestRequest) (memory.Quest, error) {
	return a.quests.Complete(ctx, req.QuestID)
}

func (a *App) opQuestsAvailable(ctx context.Context, req surface.AgentRequest) ([]memory.Quest, error) {
	return a.quests.Available(ctx, req.AgentID)
}

func (a *App) opChainCreate(ctx context.Context, req surface.ChainCreateRequest) (civ.Chain, error) {
	faction := req.Faction
	if faction == "" {
		if f, err := a.fleet.FactionOf(req.AgentID); err == nil {
			faction = f
		}
	}
	return a.chains.Create(req.AgentID, faction, req.PlayerID), nil
}

func (a *App) opChainGet(ctx context.Context, req surface.ChainRequest) (civ.Chain, error) {
	return a.chains.Get(req.ChainID)
}

func (a *App) opChainStart(ctx context.Context, req surface.ChainStartRequest) (civ.Chain, error) {
	return a.chains.Start(req.ChainID, req.PlayerID)
}

func (a *App) opChainAdvance(ctx context.Context, req surface.ChainRequest) (civ.Chain, error) {
	return a.chains.Advance(req.ChainID)
}

func (a *App) opTradeEstablish(ctx context.Context, req surface.TradeEstablishRequest) (civ.Route, error) {
	return a.trade.Establish(req.FromAgent, req.ToAgent, req.FromLocation, req.ToLocation), nil
}

func (a *App) opTradeList(ctx context.Context, req surface.TradeListRequest) ([]civ.Route, error) {
	return a.trade.Routes(civ.RouteStatus(req.Status)), nil
}

func (a *App) opTradeExecute(ctx context.Context, req surface.RouteRequest) (civ.TradeResult, error) {
	return a.trade.Execute(req.RouteID)
}

func (a *App) opTradeDisrupt(ctx context.Context, req surface.RouteRequest) (surface.Ack, error) {
	if err := a.trade.Disrupt(req.RouteID); err != nil {
		return surface.Ack{}, err
	}
	return surface.Ack{Status: "disrupted"}, nil
}

func (a *App) opTradeRestore(ctx context.Context, req surface.RouteRequest) (surface.Ack, error) {
	if err := a.trade.Restore(req.RouteID); err != nil {
		return surface.Ack{}, err
	}
	return surface.Ack{Status: "restored"}, nil
}

func (a *App) opTerritoryControl(ctx context.Context, _ struct{}) (map[string]civ.Control, error) {
	return a.territory.ControlMap(), nil
}

func (a *App) opBattleInitiate(ctx context.Context, req surface.BattleInitiateRequest) (civ.Battle, error) {
	return a.territory.Initiate(req.Territory, req.AttackerFaction)
}

func (a *App) opBattleResolve(ctx context.Context, req surface.BattleRequest) (civ.BattleResult, error) {
	return a.territory.Resolve(req.BattleID)
}

func (a *App) opBattles(ctx context.Context, req surface.BattlesRequest) ([]civ.Battle, error) {
	return a.territory.History(req.Territory, req.Limit), nil
}

// ── Factions ─────────────────────────────────────────────────────────────

func (a *App) opFactionsList(ctx context.Context, _ struct{}) ([]fleet.FactionInfo, error) {
	return a.fleet.Factions(), nil
}

func (a *App) opFactionEvents(ctx context.Context, req surface.EventsRequest) ([]fleet.Event, error) {
	all := a.fleet.WorldEvents(0)
	var out []fleet.Event
	for _, e := range all {
		if e.Stream == fleet.StreamFaction {
			out = append(out, e)
		}
	}
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[len(out)-req.Limit:]
	}
	return out, nil
}

// ── Scaling substrate ────────────────────────────────────────────────────

func (a *App) opBatchInit(ctx context.Context, req surface.BatchInitRequest) (surface.BatchInitResponse, error) {
	resp := surface.BatchInitResponse{Results: make([]surface.BatchInitResult, 0, len(req.AgentIDs))}
	for _, id := range req.AgentIDs {
		res, err := a.fleet.Register(ctx, id, "")
		r := surface.BatchInitResult{AgentID: id}
		if err != nil {
			r.Status = "error"
			r.Err = err.Error()
			resp.Errors++
		} else {
			r.Status = res.Status
			resp.Initialized++
		}
		resp.Results = append(resp.Results, r)
	}
	return resp, nil
}

func (a *App) opBatchInteract(ctx context.Context, req surface.BatchInteractRequest) (surface.BatchInteractResponse, error) {
	start := time.Now()
	resp := surface.BatchInteractResponse{
		Results:      make([]fleet.InteractionResult, len(req.Interactions)),
		ErrorDetails: make([]string, len(req.Interactions)),
	}
	for i, in := range req.Interactions {
		res, err := a.fleet.PlayerAction(ctx, in.AgentID, in.PlayerID, in.PlayerName, in.Action)
		if err != nil {
			resp.Errors++
			resp.ErrorDetails[i] = err.Error()
			continue
		}
		resp.Processed++
		resp.Results[i] = res
	}
	resp.ElapsedMs = time.Since(start).Milliseconds()
	return resp, nil
}

func (a *App) opBulkAgentData(ctx context.Context, req surface.BulkAgentDataRequest) (map[string]memory.AgentAggregate, error) {
	return a.scaling.AgentData(ctx, req.AgentIDs)
}

func (a *App) opPaginatedAgents(ctx context.Context, req surface.PageRequest) (surface.AgentsPage, error) {
	all := a.fleet.List(ctx)
	page := surface.AgentsPage{
		Page: surface.Page{Limit: req.Limit, Offset: req.Offset, Total: int64(len(all))},
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return page, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	page.Agents = all
	return page, nil
}

func (a *App) opPaginatedPlayers(ctx context.Context, req surface.PageRequest) (surface.PlayersPage, error) {
	return a.opPlayers(ctx, req)
}

func (a *App) opPaginatedQuests(ctx context.Context, req surface.PageRequest) (surface.QuestsPage, error) {
	quests, total, err := a.store.Quests(ctx, req.Limit, req.Offset)
	if err != nil {
		return surface.QuestsPage{}, err
	}
	return surface.QuestsPage{
		Page:   surface.Page{Limit: req.Limit, Offset: req.Offset, Total: total},
		Quests: quests,
	}, nil
}

func (a *App) opScalingStats(ctx context.Context, _ struct{}) (scale.SystemStats, error) {
	return a.scaling.Stats(), nil
}

func (a *App) opScalingOptimize(ctx context.Context, _ struct{}) (scale.OptimizeReport, error) {
	return a.scaling.Optimize(ctx)
}

func (a *App) opScalingCache(ctx context.Context, _ struct{}) (scale.CacheStats, error) {
	return a.scaling.Cache().Stats(), nil
}

func (a *App) opScalingCacheClear(ctx context.Context, _ struct{}) (scale.CacheStats, error) {
	a.scaling.Cache().Clear()
	return a.scaling.Cache().Stats(), nil
}

func (a *App) opZoneRegister(ctx context.Context, req surface.ZoneRegisterRequest) (surface.Ack, error) {
	if _, err := a.fleet.Agent(req.AgentID); err != nil {
		return surface.Ack{}, err
	}
	a.scaling.RegisterAgent(req.AgentID, req.Zone)
	return surface.Ack{Status: "registered"}, nil
}

func (a *App) opZoneTick(ctx context.Context, req surface.ZoneRequest) (surface.ZoneTickResponse, error) {
	tiers := a.scaling.Tiers()
	tiers.Recompute()

	inZone := tiers.InZone(req.Zone)
	due := make(map[string]struct{})
	for _, id := range tiers.DueAgents() {
		due[id] = struct{}{}
	}
	resp := surface.ZoneTickResponse{Zone: req.Zone, Agents: inZone}
	for _, id := range inZone {
		if _, ok := due[id]; ok {
			resp.Due = append(resp.Due, id)
		}
	}
	return resp, nil
}

// ── Group conversations and proximity ────────────────────────────────────

func (a *App) opLocationUpdate(ctx context.Context, req surface.LocationUpdateRequest) (surface.Ack, error) {
	err := a.groups.Locations().Update(group.LocationKind(req.Kind), req.ID, req.X, req.Y, req.Z, req.Zone)
	if err != nil {
		return surface.Ack{}, fmt.Errorf("%w: %v", surface.ErrInvalidArgument, err)
	}
	return surface.Ack{Status: "updated"}, nil
}

func (a *App) opNearby(ctx context.Context, req surface.NearbyRequest) ([]group.Neighbor, error) {
	return a.groups.Locations().Nearby(req.PlayerID, req.MaxDistance), nil
}

func (a *App) opConversationStart(ctx context.Context, req surface.ConversationStartRequest) (group.Snapshot, error) {
	return a.groups.Start(req.PlayerID, req.AgentIDs)
}

func (a *App) opConversationMessage(ctx context.Context, req surface.ConversationMessageRequest) (group.MessageResult, error) {
	return a.groups.Message(ctx, req.GroupID, req.PlayerID, req.PlayerName, req.Text)
}

func (a *App) opConversationAdd(ctx context.Context, req surface.ConversationMemberRequest) (group.Snapshot, error) {
	return a.groups.Add(req.GroupID, req.AgentID)
}

func (a *App) opConversationRemove(ctx context.Context, req surface.ConversationMemberRequest) (group.Snapshot, error) {
	return a.groups.Remove(req.GroupID, req.AgentID)
}

func (a *App) opConversationEnd(ctx context.Context, req surface.ConversationRequest) (group.Snapshot, error) {
	return a.groups.End(req.GroupID)
}

func (a *App) opConversationGet(ctx context.Context, req surface.ConversationRequest) (group.Snapshot, error) {
	return a.groups.Get(req.GroupID)
}

func (a *App) opConversationStats(ctx context.Context, _ struct{}) (group.Stats, error) {
	return a.groups.Stats(), nil
}

func (a *App) opConversationCleanup(ctx context.Context, _ struct{}) (surface.SweepResponse, error) {
	return surface.SweepResponse{Swept: a.groups.Cleanup()}, nil
}

// ── Event streaming ──────────────────────────────────────────────────────

func validStream(s string) bool {
	switch s {
	case fleet.StreamWorld, fleet.StreamFaction, fleet.StreamTerritory, fleet.StreamQuest:
		return true
	}
	return false
}

func (a *App) opEventsSubscribe(ctx context.Context, req surface.SubscribeRequest) (surface.Subscription, error) {
	if !validStream(req.Stream) {
		return surface.Subscription{}, fmt.Errorf("%w: unknown stream %q", surface.ErrInvalidArgument, req.Stream)
	}
	events, cancel := a.fleet.Hub().Subscribe(req.Stream, req.Buffer)

	a.subMu.Lock()
	a.subSeq++
	id := fmt.Sprintf("sub_%d", a.subSeq)
	sub := surface.Subscription{ID: id, Stream: req.Stream, Events: events, Cancel: cancel}
	a.subs[id] = sub
	a.subMu.Unlock()
	return sub, nil
}

func (a *App) opEventsUnsubscribe(ctx context.Context, req surface.UnsubscribeRequest) (surface.Ack, error) {
	a.subMu.Lock()
	sub, ok := a.subs[req.SubscriptionID]
	if ok {
		delete(a.subs, req.SubscriptionID)
	}
	a.subMu.Unlock()
	if !ok {
		return surface.Ack{}, fmt.Errorf("subscription %q: %w", req.SubscriptionID, memory.ErrNotFound)
	}
	sub.Cancel()
	return surface.Ack{Status: "unsubscribed"}, nil
}
