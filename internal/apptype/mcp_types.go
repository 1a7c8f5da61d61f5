package apptype

// EntityInput describes an entity to create or replace.
type EntityInput struct {
	Name         string   `json:"name" jsonschema:"Unique name of the entity. Re-using a name replaces the stored entity."`
	EntityType   string   `json:"entityType" jsonschema:"Free-text category, e.g. person or project."`
	Observations []string `json:"observations,omitempty" jsonschema:"Initial observations for the entity."`
}

// ObservationAddition appends contents to an existing entity.
type ObservationAddition struct {
	EntityName string   `json:"entityName" jsonschema:"Name of the entity to append to."`
	Contents   []string `json:"contents" jsonschema:"Observations to append."`
}

// ObservationDeletion removes exact observation strings from an entity.
type ObservationDeletion struct {
	EntityName   string   `json:"entityName" jsonschema:"Name of the entity to remove observations from."`
	Observations []string `json:"observations" jsonschema:"Exact observation strings to remove."`
}

// RelationInput identifies a relation by its (from, to, relationType) triple.
type RelationInput struct {
	From         string `json:"from" jsonschema:"Name of the source entity."`
	To           string `json:"to" jsonschema:"Name of the target entity."`
	RelationType string `json:"relationType" jsonschema:"Active-voice label, e.g. manages or depends_on."`
}

// CreateEntitiesArgs represents the arguments for the create_entities tool
type CreateEntitiesArgs struct {
	Entities []EntityInput `json:"entities" jsonschema:"A list of entities to create."`
}

// CreateEntitiesResult is the structured output of create_entities.
type CreateEntitiesResult struct {
	Entities []Entity `json:"entities" jsonschema:"The stored entities, in input order."`
}

// AddObservationsArgs represents the arguments for the add_observations tool
type AddObservationsArgs struct {
	Observations []ObservationAddition `json:"observations" jsonschema:"Observations to append, grouped by entity."`
}

// AddObservationsResult is the structured output of add_observations.
type AddObservationsResult struct {
	Results []ObservationResult `json:"results" jsonschema:"One entry per existing entity that received observations."`
}

// DeleteEntitiesArgs represents the arguments for the delete_entities tool
type DeleteEntitiesArgs struct {
	EntityNames []string `json:"entityNames" jsonschema:"Names of the entities to delete, together with their relations."`
}

// DeleteObservationsArgs represents the arguments for the delete_observations tool
type DeleteObservationsArgs struct {
	Deletions []ObservationDeletion `json:"deletions" jsonschema:"Observations to remove, grouped by entity."`
}

// CreateRelationsArgs represents the arguments for the create_relations tool
type CreateRelationsArgs struct {
	Relations []RelationInput `json:"relations" jsonschema:"A list of relations to create between entities."`
}

// CreateRelationsResult is the structured output of create_relations.
type CreateRelationsResult struct {
	Relations []Relation `json:"relations" jsonschema:"The stored relations, in input order."`
}

// DeleteRelationsArgs represents the arguments for the delete_relations tool
type DeleteRelationsArgs struct {
	Relations []RelationInput `json:"relations" jsonschema:"Relations to delete, matched by exact triple."`
}

// SearchNodesArgs represents the arguments for the search_nodes tool
type SearchNodesArgs struct {
	Query string `json:"query" jsonschema:"Case-insensitive substring matched against names, types, observations and relation fields."`
}

// OpenNodesArgs represents the arguments for the open_nodes tool
type OpenNodesArgs struct {
	Names []string `json:"names" jsonschema:"Exact entity names to fetch."`
}

// ReadGraphArgs represents the arguments for the read_graph tool
type ReadGraphArgs struct{}

// HealthArgs represents the arguments for the health_check tool
type HealthArgs struct{}

// StatusResult is the memory://status view.
type StatusResult struct {
	EntityCount   int    `json:"entityCount"`
	RelationCount int    `json:"relationCount"`
	Backend       string `json:"backend"`
	Location      string `json:"location,omitempty"`
}

// HealthResult reports server and storage status.
type HealthResult struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	Revision       string `json:"revision"`
	BuildDate      string `json:"buildDate"`
	Backend        string `json:"backend"`
	EntityCount    int    `json:"entityCount"`
	RelationCount  int    `json:"relationCount"`
	BackendHealthy bool   `json:"backendHealthy"`
	Error          string `json:"error,omitempty"`
}
