package persona

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/duskfolk/duskfolk/pkg/memory"
	"github.com/duskfolk/duskfolk/pkg/types"
)

// roleTemplate describes how a role archetype is fleshed out into a persona.
// Trait ranges override the triangular baseline for the traits that define
// the archetype; everything else stays near the population midpoint.
type roleTemplate struct {
	roles          []string
	locations      []string
	dialogueStyles []string
	faction        string
	traitRanges    map[string][2]float64
}

var roleTemplates = map[string]roleTemplate{
	"gatekeeper": {
		roles:          []string{"Guarded Gatekeeper", "Suspicious Watchman", "Vigilant Sentry"},
		locations:      []string{"Porto Cobre Gates", "North Watch", "East Checkpoint"},
		dialogueStyles: []string{"Direct and cautious", "Questioning and skeptical", "Blunt and defensive"},
		faction:        "guards",
		traitRanges:    map[string][2]float64{"paranoia": {0.6, 0.9}, "discipline": {0.5, 0.8}},
	},
	"guard": {
		roles:          []string{"Disciplined Protector", "Veteran Soldier", "Elite Defender"},
		locations:      []string{"Inner Gates", "Barracks", "Patrol Route"},
		dialogueStyles: []string{"Military formal", "Strict and commanding", "Professional and direct"},
		faction:        "guards",
		traitRanges:    map[string][2]float64{"discipline": {0.7, 0.9}, "aggression": {0.4, 0.7}},
	},
	"merchant": {
		roles:          []string{"Opportunistic Trader", "Shrewd Dealer", "Cunning Broker"},
		locations:      []string{"Market District", "Trading Post", "Black Market"},
		dialogueStyles: []string{"Friendly but calculating", "Persuasive", "Business-focused"},
		faction:        "traders",
		traitRanges:    map[string][2]float64{"opportunism": {0.7, 0.95}, "curiosity": {0.6, 0.8}},
	},
	"civilian": {
		roles:          []string{"Cautious Survivor", "Weary Refugee", "Hopeful Settler"},
		locations:      []string{"Residential Area", "Refugee Camp", "Safe House"},
		dialogueStyles: []string{"Nervous and careful", "Grateful but scared", "Hopeful"},
		faction:        "citizens",
		traitRanges:    map[string][2]float64{"paranoia": {0.6, 0.9}, "empathy": {0.5, 0.8}},
	},
	"scholar": {
		roles:          []string{"Wise Researcher", "Curious Academic", "Knowledge Keeper"},
		locations:      []string{"Library", "Research Lab", "Archive"},
		dialogueStyles: []string{"Analytical and thoughtful", "Inquisitive", "Educational"},
		faction:        "citizens",
		traitRanges:    map[string][2]float64{"curiosity": {0.8, 0.95}, "discipline": {0.6, 0.8}},
	},
	"warrior": {
		roles:          []string{"Battle-Hardened Fighter", "Fierce Combatant", "Tactical Warrior"},
		locations:      []string{"Training Ground", "Front Lines", "War Room"},
		dialogueStyles: []string{"Aggressive and confident", "Strategic", "Direct and forceful"},
		faction:        "guards",
		traitRanges:    map[string][2]float64{"aggression": {0.7, 0.9}, "risk_tolerance": {0.6, 0.8}},
	},
}

// RoleTypes lists the known role archetypes in a stable order.
var RoleTypes = []string{"gatekeeper", "guard", "merchant", "civilian", "scholar", "warrior"}

// Generator produces personas from role templates. The rand source is
// injectable so tests get reproducible NPCs.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a Generator drawing from rng. A nil rng panics;
// callers own seeding.
func NewGenerator(rng *rand.Rand) *Generator {
	if rng == nil {
		panic("persona: NewGenerator requires a rand source")
	}
	return &Generator{rng: rng}
}

// Generate builds a persona for id from the named role archetype. Unknown
// role types fall back to "civilian", matching how the world treats drifters.
func (g *Generator) Generate(id, roleType string) Persona {
	tmpl, ok := roleTemplates[roleType]
	if !ok {
		roleType = "civilian"
		tmpl = roleTemplates[roleType]
	}

	role := tmpl.roles[g.rng.Intn(len(tmpl.roles))]
	location := tmpl.locations[g.rng.Intn(len(tmpl.locations))]
	style := tmpl.dialogueStyles[g.rng.Intn(len(tmpl.dialogueStyles))]

	traits := g.generateTraits(tmpl.traitRanges)
	ts := types.DefaultTraits()
	for name, v := range traits {
		ts.Set(name, v)
	}

	return Persona{
		ID:            id,
		Name:          id,
		Role:          role,
		Location:      location,
		Faction:       tmpl.faction,
		DialogueStyle: style,
		Backstory:     fmt.Sprintf("%s has survived at %s long enough to earn the title of %s.", id, location, role),
		Goal:          goalForRole(roleType),
		Traits:        traits,
		InitialVitals: types.Vitals{
			Hunger:  0.1 + g.rng.Float64()*0.3,
			Fatigue: 0.1 + g.rng.Float64()*0.3,
		},
		InitialMood:     MoodFor(ts),
		InitialMemories: g.seedMemories(role, location),
	}
}

// generateTraits draws each trait from triangular(0.2, 0.8, 0.5), then
// overrides the archetype-defining traits with uniform draws from their
// template ranges.
func (g *Generator) generateTraits(ranges map[string][2]float64) map[string]float64 {
	traits := make(map[string]float64, len(types.TraitNames))
	for _, name := range types.TraitNames {
		traits[name] = g.triangular(0.2, 0.8, 0.5)
	}
	for name, r := range ranges {
		traits[name] = r[0] + g.rng.Float64()*(r[1]-r[0])
	}
	return traits
}

// triangular samples from a triangular distribution on [lo, hi] with mode m.
func (g *Generator) triangular(lo, hi, m float64) float64 {
	u := g.rng.Float64()
	c := (m - lo) / (hi - lo)
	if u < c {
		return lo + (hi-lo)*math.Sqrt(u*c)
	}
	return hi - (hi-lo)*math.Sqrt((1-u)*(1-c))
}

// seedMemories gives a generated NPC a minimal past: one belief, one episode,
// one social impression.
func (g *Generator) seedMemories(role, location string) []SeedMemory {
	return []SeedMemory{
		{Kind: memory.KindBelief, Content: fmt.Sprintf("The %s is only as safe as the people watching it.", location), Strength: 0.7 + g.rng.Float64()*0.2},
		{Kind: memory.KindEpisodic, Content: fmt.Sprintf("Survived another incident near %s.", location), Strength: 0.6 + g.rng.Float64()*0.2},
		{Kind: memory.KindSocial, Content: fmt.Sprintf("Most strangers who claim to be a %s are lying about something.", role), Strength: 0.5 + g.rng.Float64()*0.2},
	}
}

// goalForRole maps an archetype to its standing objective.
func goalForRole(roleType string) string {
	switch roleType {
	case "gatekeeper", "guard":
		return "Keep the settlement safe"
	case "merchant":
		return "Turn scarcity into profit"
	case "scholar":
		return "Understand what broke the world"
	case "warrior":
		return "Be ready when the next fight comes"
	default:
		return "Survive another day"
	}
}
