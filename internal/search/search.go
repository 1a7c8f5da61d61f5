// Package search implements case-insensitive substring matching over the
// knowledge graph. Results keep the order in which candidates are supplied;
// there is no ranking.
package search

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
)

// Strategy selects the entities and relations that match a query.
type Strategy interface {
	Filter(query string, entities []apptype.Entity, relations []apptype.Relation) apptype.GraphResult
}

// Mode names a Strategy.
type Mode string

const (
	// ModeIndependent matches entities and relations separately.
	ModeIndependent Mode = "independent"
	// ModeIncident returns every relation touching a matched entity.
	ModeIncident Mode = "incident"
)

// ParseMode converts a configuration value into a Mode. The empty string
// selects ModeIndependent.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeIndependent:
		return ModeIndependent, nil
	case ModeIncident:
		return ModeIncident, nil
	default:
		return "", fmt.Errorf("unknown search mode %q (expected %s or %s)", s, ModeIndependent, ModeIncident)
	}
}

// New returns the Strategy for mode, falling back to independent matching.
func New(mode Mode) Strategy {
	if mode == ModeIncident {
		return incidentStrategy{}
	}
	return independentStrategy{}
}

// MatchEntity reports whether q (already lower-cased) is a substring of the
// entity name, type or any single observation.
func MatchEntity(q string, e apptype.Entity) bool {
	if contains(e.Name, q) || contains(e.EntityType, q) {
		return true
	}
	for _, o := range e.Observations {
		if contains(o, q) {
			return true
		}
	}
	return false
}

// MatchRelation reports whether q (already lower-cased) is a substring of the
// relation endpoints or type.
func MatchRelation(q string, r apptype.Relation) bool {
	return contains(r.From, q) || contains(r.To, q) || contains(r.RelationType, q)
}

// Normalize lower-cases a query the same way haystacks are lower-cased.
func Normalize(query string) string {
	return strings.ToLower(query)
}

func contains(haystack, q string) bool {
	return strings.Contains(strings.ToLower(haystack), q)
}

type independentStrategy struct{}

func (independentStrategy) Filter(query string, entities []apptype.Entity, relations []apptype.Relation) apptype.GraphResult {
	q := Normalize(query)
	matchedEntities := make([]apptype.Entity, 0, len(entities))
	for _, e := range entities {
		if MatchEntity(q, e) {
			matchedEntities = append(matchedEntities, e)
		}
	}
	matchedRelations := make([]apptype.Relation, 0, len(relations))
	for _, r := range relations {
		if MatchRelation(q, r) {
			matchedRelations = append(matchedRelations, r)
		}
	}
	return apptype.NewGraphResult(matchedEntities, matchedRelations)
}

type incidentStrategy struct{}

// MatchesRelationText is false: relations are selected by their endpoints
// alone, so callers must supply every relation rather than text candidates.
func (incidentStrategy) MatchesRelationText() bool { return false }

func (incidentStrategy) Filter(query string, entities []apptype.Entity, relations []apptype.Relation) apptype.GraphResult {
	q := Normalize(query)
	matchedEntities := make([]apptype.Entity, 0, len(entities))
	names := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		if MatchEntity(q, e) {
			matchedEntities = append(matchedEntities, e)
			names[e.Name] = struct{}{}
		}
	}
	incident := make([]apptype.Relation, 0, len(relations))
	for _, r := range relations {
		_, fromOK := names[r.From]
		_, toOK := names[r.To]
		if fromOK || toOK {
			incident = append(incident, r)
		}
	}
	return apptype.NewGraphResult(matchedEntities, incident)
}

// MatchesRelationText reports whether strategy selects relations by their
// own text. Strategies that do not say so are assumed to.
func MatchesRelationText(strategy Strategy) bool {
	if s, ok := strategy.(interface{ MatchesRelationText() bool }); ok {
		return s.MatchesRelationText()
	}
	return true
}
