package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/metrics"
)

const jsonMIME = "application/json"

// Resource URIs served by the server.
const (
	GraphURI     = "memory://graph"
	EntitiesURI  = "memory://entities"
	RelationsURI = "memory://relations"
	StatsURI     = "memory://stats"
	StatusURI    = "memory://status"
)

type resourceView struct {
	resource *mcp.Resource
	view     func(ctx context.Context) (any, error)
}

// resourceViews lists the read-only JSON views of the graph.
func (s *MCPServer) resourceViews() []resourceView {
	return []resourceView{
		{
			&mcp.Resource{URI: GraphURI, Name: "Knowledge Graph", Description: "The complete knowledge graph with all entities and relations", MIMEType: jsonMIME},
			func(ctx context.Context) (any, error) { return s.store.ReadGraph(ctx) },
		},
		{
			&mcp.Resource{URI: EntitiesURI, Name: "Entities", Description: "All entities in the knowledge graph", MIMEType: jsonMIME},
			func(ctx context.Context) (any, error) {
				g, err := s.store.ReadGraph(ctx)
				return g.Entities, err
			},
		},
		{
			&mcp.Resource{URI: RelationsURI, Name: "Relations", Description: "All relations in the knowledge graph", MIMEType: jsonMIME},
			func(ctx context.Context) (any, error) {
				g, err := s.store.ReadGraph(ctx)
				return g.Relations, err
			},
		},
		{
			&mcp.Resource{URI: StatsURI, Name: "Memory Statistics", Description: "Statistics about the knowledge graph", MIMEType: jsonMIME},
			func(ctx context.Context) (any, error) { return s.store.Stats(ctx) },
		},
		{
			&mcp.Resource{URI: StatusURI, Name: "Memory Status", Description: "Current status of the memory graph", MIMEType: jsonMIME},
			func(ctx context.Context) (any, error) {
				st, err := s.store.Stats(ctx)
				if err != nil {
					return nil, err
				}
				return apptype.StatusResult{
					EntityCount:   st.TotalEntities,
					RelationCount: st.TotalRelations,
					Backend:       s.store.BackendName(),
					Location:      s.store.Location(),
				}, nil
			},
		},
	}
}

func (s *MCPServer) setupResources() {
	for _, r := range s.resourceViews() {
		s.server.AddResource(r.resource, s.jsonResource(r.resource.URI, r.view))
	}
}

func (s *MCPServer) jsonResource(uri string, view func(ctx context.Context) (any, error)) mcp.ResourceHandler {
	return func(ctx context.Context, _ *mcp.ServerSession, _ *mcp.ReadResourceParams) (*mcp.ReadResourceResult, error) {
		done := metrics.TimeTool("resource:" + uri)
		var success bool
		defer func() { done(success) }()

		v, err := view(ctx)
		if err != nil {
			return nil, s.toolError(uri, err)
		}
		text, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", uri, err)
		}
		success = true
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: jsonMIME, Text: string(text)}},
		}, nil
	}
}
