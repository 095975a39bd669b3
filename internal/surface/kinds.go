package surface

// Kind names one operation. The set is the module's full surface; transports
// map their own routes onto these names.
type Kind string

// Agent lifecycle and state.
const (
	KindAgentInitialize    Kind = "agent.initialize"
	KindAgentShutdown      Kind = "agent.shutdown"
	KindAgentList          Kind = "agent.list"
	KindAgentAction        Kind = "agent.action"
	KindAgentStatus        Kind = "agent.status"
	KindAgentMemories      Kind = "agent.memories"
	KindAgentBeliefs       Kind = "agent.beliefs"
	KindAgentRelationships Kind = "agent.relationships"
	KindAgentGoals         Kind = "agent.goals"
)

// Players and the social graph.
const (
	KindPlayer        Kind = "player"
	KindPlayers       Kind = "players"
	KindPlayerMemory  Kind = "memory"
	KindShareMemories Kind = "share_memories"
	KindGossip        Kind = "gossip"
)

// World simulation.
const (
	KindWorldStart     Kind = "world.start"
	KindWorldStop      Kind = "world.stop"
	KindWorldStatus    Kind = "world.status"
	KindWorldTick      Kind = "world.tick"
	KindWorldAdvance   Kind = "world.advance"
	KindWorldEvents    Kind = "world.events"
	KindWorldConfigure Kind = "world.configure"
)

// Quests, chains, and the economy.
const (
	KindQuestGenerate   Kind = "quest.generate"
	KindQuestAccept     Kind = "quest.accept"
	KindQuestComplete   Kind = "quest.complete"
	KindQuestsAvailable Kind = "quests.available"

	KindChainCreate  Kind = "chain.create"
	KindChainGet     Kind = "chain.get"
	KindChainStart   Kind = "chain.start"
	KindChainAdvance Kind = "chain.advance"

	KindTradeEstablish Kind = "trade.establish"
	KindTradeList      Kind = "trade.list"
	KindTradeExecute   Kind = "trade.execute"
	KindTradeDisrupt   Kind = "trade.disrupt"
	KindTradeRestore   Kind = "trade.restore"

	KindTerritoryControl Kind = "territory.control"
	KindBattleInitiate   Kind = "battle.initiate"
	KindBattleResolve    Kind = "battle.resolve"
	KindBattles          Kind = "battles"
)

// Factions.
const (
	KindFactionsList  Kind = "factions.list"
	KindFactionEvents Kind = "faction.events"
)

// Scaling substrate.
const (
	KindBatchInit         Kind = "batch.init"
	KindBatchInteract     Kind = "batch.interact"
	KindBulkAgentData     Kind = "bulk.agent_data"
	KindPaginatedAgents   Kind = "paginated.agents"
	KindPaginatedPlayers  Kind = "paginated.players"
	KindPaginatedQuests   Kind = "paginated.quests"
	KindScalingStats      Kind = "scaling.stats"
	KindScalingOptimize   Kind = "scaling.optimize"
	KindScalingCache      Kind = "scaling.cache"
	KindScalingCacheClear Kind = "scaling.cache.clear"
	KindZoneRegister      Kind = "zone.register"
	KindZoneTick          Kind = "zone.tick"
)

// Group conversations and proximity.
const (
	KindLocationUpdate      Kind = "location.update"
	KindNearby              Kind = "nearby"
	KindConversationStart   Kind = "conversation.start"
	KindConversationMessage Kind = "conversation.message"
	KindConversationAdd     Kind = "conversation.add"
	KindConversationRemove  Kind = "conversation.remove"
	KindConversationEnd     Kind = "conversation.end"
	KindConversationGet     Kind = "conversation.get"
	KindConversationStats   Kind = "conversation.stats"
	KindConversationCleanup Kind = "conversation.cleanup"
)

// Event streaming.
const (
	KindEventsSubscribe   Kind = "events.subscribe"
	KindEventsUnsubscribe Kind = "events.unsubscribe"
)
