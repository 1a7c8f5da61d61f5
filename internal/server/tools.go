package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/metrics"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/stats"
)

func schemaFor[T any](name string) *jsonschema.Schema {
	schema, err := jsonschema.For[T]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for %s: %v", name, err))
	}
	return schema
}

func boolPtr(b bool) *bool { return &b }

// setupToolHandlers registers all MCP tools
func (s *MCPServer) setupToolHandlers() {
	readOnly := &mcp.ToolAnnotations{ReadOnlyHint: true}
	idempotent := &mcp.ToolAnnotations{IdempotentHint: true, DestructiveHint: boolPtr(false)}
	destructive := &mcp.ToolAnnotations{IdempotentHint: true, DestructiveHint: boolPtr(true)}

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  idempotent,
		Name:         "create_entities",
		Title:        "Create Entities",
		Description:  "Create multiple new entities in the knowledge graph. An existing entity with the same name is replaced.",
		InputSchema:  schemaFor[apptype.CreateEntitiesArgs]("CreateEntitiesArgs"),
		OutputSchema: schemaFor[apptype.CreateEntitiesResult]("CreateEntitiesResult"),
	}, s.handleCreateEntities)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  &mcp.ToolAnnotations{DestructiveHint: boolPtr(false)},
		Name:         "add_observations",
		Title:        "Add Observations",
		Description:  "Append observations to existing entities. Unknown entities are skipped.",
		InputSchema:  schemaFor[apptype.AddObservationsArgs]("AddObservationsArgs"),
		OutputSchema: schemaFor[apptype.AddObservationsResult]("AddObservationsResult"),
	}, s.handleAddObservations)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations: destructive,
		Name:        "delete_entities",
		Title:       "Delete Entities",
		Description: "Delete multiple entities and every relation that references them.",
		InputSchema: schemaFor[apptype.DeleteEntitiesArgs]("DeleteEntitiesArgs"),
	}, s.handleDeleteEntities)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations: destructive,
		Name:        "delete_observations",
		Title:       "Delete Observations",
		Description: "Delete specific observations from entities by exact content.",
		InputSchema: schemaFor[apptype.DeleteObservationsArgs]("DeleteObservationsArgs"),
	}, s.handleDeleteObservations)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  idempotent,
		Name:         "create_relations",
		Title:        "Create Relations",
		Description:  "Create directed relations between entities. Relations should be in active voice.",
		InputSchema:  schemaFor[apptype.CreateRelationsArgs]("CreateRelationsArgs"),
		OutputSchema: schemaFor[apptype.CreateRelationsResult]("CreateRelationsResult"),
	}, s.handleCreateRelations)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations: destructive,
		Name:        "delete_relations",
		Title:       "Delete Relations",
		Description: "Delete multiple relations, matched by from, to and relationType.",
		InputSchema: schemaFor[apptype.DeleteRelationsArgs]("DeleteRelationsArgs"),
	}, s.handleDeleteRelations)

	// Each output schema gets its own resolution of GraphResult.
	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  readOnly,
		Name:         "search_nodes",
		Title:        "Search Nodes",
		Description:  "Search entities and relations by case-insensitive substring. An empty query returns everything.",
		InputSchema:  schemaFor[apptype.SearchNodesArgs]("SearchNodesArgs"),
		OutputSchema: schemaFor[apptype.GraphResult]("GraphResult (search_nodes)"),
	}, s.handleSearchNodes)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  readOnly,
		Name:         "open_nodes",
		Title:        "Open Nodes",
		Description:  "Retrieve entities by exact name, with the relations between them.",
		InputSchema:  schemaFor[apptype.OpenNodesArgs]("OpenNodesArgs"),
		OutputSchema: schemaFor[apptype.GraphResult]("GraphResult (open_nodes)"),
	}, s.handleOpenNodes)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  readOnly,
		Name:         "read_graph",
		Title:        "Read Graph",
		Description:  "Read the entire knowledge graph, most recently updated entities first.",
		InputSchema:  schemaFor[apptype.ReadGraphArgs]("ReadGraphArgs"),
		OutputSchema: schemaFor[apptype.GraphResult]("GraphResult (read_graph)"),
	}, s.handleReadGraph)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  readOnly,
		Name:         "health_check",
		Title:        "Health Check",
		Description:  "Returns server build information and storage status.",
		InputSchema:  schemaFor[apptype.HealthArgs]("HealthArgs"),
		OutputSchema: schemaFor[apptype.HealthResult]("HealthResult"),
	}, s.handleHealth)
}

// toolError logs err and returns it for the SDK to report as an IsError
// result.
func (s *MCPServer) toolError(tool string, err error) error {
	s.logger.Warn("tool call failed", zap.String("tool", tool), zap.Error(err))
	return err
}

func textContent(text string) []mcp.Content {
	return []mcp.Content{&mcp.TextContent{Text: text}}
}

// handleCreateEntities handles the create_entities tool call
func (s *MCPServer) handleCreateEntities(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.CreateEntitiesArgs],
) (*mcp.CallToolResultFor[apptype.CreateEntitiesResult], error) {
	done := metrics.TimeTool("create_entities")
	var success bool
	defer func() { done(success) }()

	entities, err := s.store.CreateEntities(ctx, params.Arguments.Entities)
	if err != nil {
		return nil, s.toolError("create_entities", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.CreateEntitiesResult]{
		Content:           textContent(formatCreatedEntities(entities)),
		StructuredContent: apptype.CreateEntitiesResult{Entities: entities},
	}, nil
}

// handleAddObservations handles the add_observations tool call
func (s *MCPServer) handleAddObservations(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.AddObservationsArgs],
) (*mcp.CallToolResultFor[apptype.AddObservationsResult], error) {
	done := metrics.TimeTool("add_observations")
	var success bool
	defer func() { done(success) }()

	results, err := s.store.AddObservations(ctx, params.Arguments.Observations)
	if err != nil {
		return nil, s.toolError("add_observations", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.AddObservationsResult]{
		Content:           textContent(formatAddedObservations(results)),
		StructuredContent: apptype.AddObservationsResult{Results: results},
	}, nil
}

// handleDeleteEntities handles the delete_entities tool call
func (s *MCPServer) handleDeleteEntities(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.DeleteEntitiesArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("delete_entities")
	var success bool
	defer func() { done(success) }()

	names := params.Arguments.EntityNames
	if err := s.store.DeleteEntities(ctx, names); err != nil {
		return nil, s.toolError("delete_entities", err)
	}
	success = true
	return &mcp.CallToolResultFor[any]{
		Content: textContent("Deleted entities: " + strings.Join(names, ", ")),
	}, nil
}

// handleDeleteObservations handles the delete_observations tool call
func (s *MCPServer) handleDeleteObservations(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.DeleteObservationsArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("delete_observations")
	var success bool
	defer func() { done(success) }()

	deletions := params.Arguments.Deletions
	if err := s.store.DeleteObservations(ctx, deletions); err != nil {
		return nil, s.toolError("delete_observations", err)
	}
	success = true
	return &mcp.CallToolResultFor[any]{
		Content: textContent(fmt.Sprintf("Deleted observations from %d entities", len(deletions))),
	}, nil
}

// handleCreateRelations handles the create_relations tool call
func (s *MCPServer) handleCreateRelations(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.CreateRelationsArgs],
) (*mcp.CallToolResultFor[apptype.CreateRelationsResult], error) {
	done := metrics.TimeTool("create_relations")
	var success bool
	defer func() { done(success) }()

	relations, err := s.store.CreateRelations(ctx, params.Arguments.Relations)
	if err != nil {
		return nil, s.toolError("create_relations", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.CreateRelationsResult]{
		Content:           textContent(formatCreatedRelations(relations)),
		StructuredContent: apptype.CreateRelationsResult{Relations: relations},
	}, nil
}

// handleDeleteRelations handles the delete_relations tool call
func (s *MCPServer) handleDeleteRelations(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.DeleteRelationsArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("delete_relations")
	var success bool
	defer func() { done(success) }()

	relations := params.Arguments.Relations
	if err := s.store.DeleteRelations(ctx, relations); err != nil {
		return nil, s.toolError("delete_relations", err)
	}
	success = true
	return &mcp.CallToolResultFor[any]{
		Content: textContent(fmt.Sprintf("Deleted %d relations", len(relations))),
	}, nil
}

// handleSearchNodes handles the search_nodes tool call
func (s *MCPServer) handleSearchNodes(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.SearchNodesArgs],
) (*mcp.CallToolResultFor[apptype.GraphResult], error) {
	done := metrics.TimeTool("search_nodes")
	var success bool
	defer func() { done(success) }()

	query := params.Arguments.Query
	graph, err := s.store.SearchNodes(ctx, query)
	if err != nil {
		return nil, s.toolError("search_nodes", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.GraphResult]{
		Content:           textContent(formatSearch(query, graph)),
		StructuredContent: graph,
	}, nil
}

// handleOpenNodes handles the open_nodes tool call
func (s *MCPServer) handleOpenNodes(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.OpenNodesArgs],
) (*mcp.CallToolResultFor[apptype.GraphResult], error) {
	done := metrics.TimeTool("open_nodes")
	var success bool
	defer func() { done(success) }()

	graph, err := s.store.OpenNodes(ctx, params.Arguments.Names)
	if err != nil {
		return nil, s.toolError("open_nodes", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.GraphResult]{
		Content:           textContent(formatOpenNodes(graph)),
		StructuredContent: graph,
	}, nil
}

// handleReadGraph handles the read_graph tool call
func (s *MCPServer) handleReadGraph(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.ReadGraphArgs],
) (*mcp.CallToolResultFor[apptype.GraphResult], error) {
	done := metrics.TimeTool("read_graph")
	var success bool
	defer func() { done(success) }()

	graph, err := s.store.ReadGraph(ctx)
	if err != nil {
		return nil, s.toolError("read_graph", err)
	}
	success = true
	// The overview is derived from the same snapshot as the structured result.
	overview := stats.Compute(graph, time.Now())
	return &mcp.CallToolResultFor[apptype.GraphResult]{
		Content:           textContent(formatOverview(overview)),
		StructuredContent: graph,
	}, nil
}

// handleHealth returns basic server health information
func (s *MCPServer) handleHealth(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.HealthArgs],
) (*mcp.CallToolResultFor[apptype.HealthResult], error) {
	done := metrics.TimeTool("health_check")
	var success bool
	defer func() { done(success) }()

	out := apptype.HealthResult{
		Name:           Name,
		Version:        buildinfo.Version,
		Revision:       buildinfo.Revision,
		BuildDate:      buildinfo.BuildDate,
		Backend:        s.store.BackendName(),
		BackendHealthy: true,
	}
	if err := s.store.Ping(ctx); err != nil {
		out.BackendHealthy = false
		out.Error = err.Error()
	} else if st, err := s.store.Stats(ctx); err != nil {
		out.BackendHealthy = false
		out.Error = err.Error()
	} else {
		out.EntityCount = st.TotalEntities
		out.RelationCount = st.TotalRelations
	}
	success = out.BackendHealthy

	status := "ok"
	if !out.BackendHealthy {
		status = "degraded: " + out.Error
	}
	return &mcp.CallToolResultFor[apptype.HealthResult]{
		Content: textContent(fmt.Sprintf("%s %s (%s) backend=%s entities=%d relations=%d status=%s",
			out.Name, out.Version, out.Revision, out.Backend, out.EntityCount, out.RelationCount, status)),
		StructuredContent: out,
	}, nil
}
