package apptype

import "time"

// TimeLayout is the textual form of every persisted timestamp. A fixed-width
// layout keeps lexical and chronological order identical.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Entity represents a node in the knowledge graph
type Entity struct {
	ID           string   `json:"id" yaml:"id" jsonschema:"Opaque identifier assigned when the entity was created."`
	Name         string   `json:"name" yaml:"name" jsonschema:"Unique name of the entity."`
	EntityType   string   `json:"entityType" yaml:"entityType" jsonschema:"Free-text category of the entity."`
	Observations []string `json:"observations" yaml:"observations" jsonschema:"Ordered free-text facts about the entity."`
	CreatedAt    string   `json:"createdAt" yaml:"createdAt" jsonschema:"Creation timestamp (RFC 3339 in UTC with nanoseconds)."`
	UpdatedAt    string   `json:"updatedAt" yaml:"updatedAt" jsonschema:"Last modification timestamp (RFC 3339 in UTC with nanoseconds)."`
}

// Relation represents a directed relationship between two entities
type Relation struct {
	ID           string `json:"id" yaml:"id" jsonschema:"Opaque identifier assigned when the relation was created."`
	From         string `json:"from" yaml:"from" jsonschema:"Name of the source entity."`
	To           string `json:"to" yaml:"to" jsonschema:"Name of the target entity."`
	RelationType string `json:"relationType" yaml:"relationType" jsonschema:"Active-voice label of the relation."`
	CreatedAt    string `json:"createdAt" yaml:"createdAt" jsonschema:"Creation timestamp (RFC 3339 in UTC with nanoseconds)."`
}

// Key returns the (from, to, relationType) triple that identifies a relation.
func (r Relation) Key() RelationInput {
	return RelationInput{From: r.From, To: r.To, RelationType: r.RelationType}
}

// GraphResult bundles entities and relations returned by graph queries.
type GraphResult struct {
	Entities  []Entity   `json:"entities" yaml:"entities" jsonschema:"Matched entities."`
	Relations []Relation `json:"relations" yaml:"relations" jsonschema:"Matched relations."`
}

// NewGraphResult returns a GraphResult whose slices are never nil.
func NewGraphResult(entities []Entity, relations []Relation) GraphResult {
	if entities == nil {
		entities = []Entity{}
	}
	if relations == nil {
		relations = []Relation{}
	}
	return GraphResult{Entities: entities, Relations: relations}
}

// ObservationResult reports the observations appended to one entity.
type ObservationResult struct {
	EntityName        string   `json:"entityName" jsonschema:"Entity the observations were added to."`
	AddedObservations []string `json:"addedObservations" jsonschema:"Observations appended, in order."`
}

// Stats is a derived, non-persisted summary of the graph.
type Stats struct {
	TotalEntities  int            `json:"totalEntities"`
	TotalRelations int            `json:"totalRelations"`
	EntityTypes    map[string]int `json:"entityTypes"`
	RelationTypes  map[string]int `json:"relationTypes"`
	LastUpdated    string         `json:"lastUpdated,omitempty"`
	GeneratedAt    string         `json:"generatedAt"`
}
