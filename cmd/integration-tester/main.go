// Command integration-tester drives a running SSE server through a full
// create, query and delete cycle and prints a JSON report.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memory-graph-go/internal/server"
)

type StepResult struct {
	Name      string `json:"name"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type Report struct {
	SSEURL     string       `json:"sse_url"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMs int64        `json:"duration_ms"`
	Steps      []StepResult `json:"steps"`
	Passed     bool         `json:"passed"`
}

type step struct {
	name string
	run  func(ctx context.Context, session *mcp.ClientSession) error
}

func main() {
	sseURL := flag.String("sse-url", "http://localhost:8080/sse", "SSE endpoint URL")
	prefix := flag.String("prefix", "itest", "Prefix for entity names created by the run")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "integration-tester", Version: "dev"}, nil)
	transport := mcp.NewSSEClientTransport(*sseURL, nil)

	start := time.Now()
	report := Report{SSEURL: *sseURL, StartedAt: start}

	tConn := time.Now()
	session, err := client.Connect(ctx, transport)
	connRes := StepResult{Name: "connect", Success: err == nil, ElapsedMs: elapsedMsSince(tConn)}
	if err != nil {
		connRes.Error = err.Error()
		report.Steps = []StepResult{connRes}
		finish(&report, start)
		os.Exit(1)
	}
	defer session.Close()

	report.Steps = append(report.Steps, connRes)
	for _, s := range scenario(*prefix) {
		t0 := time.Now()
		res := StepResult{Name: s.name, Success: true}
		if err := s.run(ctx, session); err != nil {
			res.Success = false
			res.Error = err.Error()
		}
		res.ElapsedMs = elapsedMsSince(t0)
		report.Steps = append(report.Steps, res)
	}

	if !finish(&report, start) {
		os.Exit(1)
	}
}

// finish fills in the summary fields and writes the report to stdout.
func finish(report *Report, start time.Time) bool {
	report.DurationMs = elapsedMsSince(start)
	report.Passed = len(report.Steps) > 0
	for _, s := range report.Steps {
		if !s.Success {
			report.Passed = false
			break
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
	return report.Passed
}

func scenario(prefix string) []step {
	a, b := prefix+"-a", prefix+"-b"
	marker := prefix + "-marker"
	rel := apptype.RelationInput{From: a, To: b, RelationType: "depends_on"}

	return []step{
		{"list_tools", func(ctx context.Context, session *mcp.ClientSession) error {
			tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
			if err != nil {
				return err
			}
			want := map[string]bool{
				"create_entities": false, "add_observations": false, "delete_entities": false,
				"delete_observations": false, "create_relations": false, "delete_relations": false,
				"search_nodes": false, "open_nodes": false, "read_graph": false, "health_check": false,
			}
			for _, tool := range tools.Tools {
				if _, ok := want[tool.Name]; ok {
					want[tool.Name] = true
				}
			}
			for name, seen := range want {
				if !seen {
					return fmt.Errorf("tool %s not advertised", name)
				}
			}
			return nil
		}},
		{"create_entities", func(ctx context.Context, session *mcp.ClientSession) error {
			var out apptype.CreateEntitiesResult
			err := callTool(ctx, session, "create_entities", apptype.CreateEntitiesArgs{
				Entities: []apptype.EntityInput{
					{Name: a, EntityType: "service", Observations: []string{"written in Go"}},
					{Name: b, EntityType: "service"},
				},
			}, &out)
			if err != nil {
				return err
			}
			if len(out.Entities) != 2 {
				return fmt.Errorf("expected 2 entities, got %d", len(out.Entities))
			}
			return nil
		}},
		{"create_entities_invalid", func(ctx context.Context, session *mcp.ClientSession) error {
			err := callTool(ctx, session, "create_entities", apptype.CreateEntitiesArgs{
				Entities: []apptype.EntityInput{{Name: "", EntityType: "service"}},
			}, nil)
			if err == nil {
				return errors.New("expected an error result for an empty name")
			}
			return nil
		}},
		{"add_observations", func(ctx context.Context, session *mcp.ClientSession) error {
			var out apptype.AddObservationsResult
			err := callTool(ctx, session, "add_observations", apptype.AddObservationsArgs{
				Observations: []apptype.ObservationAddition{{EntityName: a, Contents: []string{marker}}},
			}, &out)
			if err != nil {
				return err
			}
			if len(out.Results) != 1 || len(out.Results[0].AddedObservations) != 1 {
				return fmt.Errorf("unexpected add result: %+v", out.Results)
			}
			return nil
		}},
		{"create_relations", func(ctx context.Context, session *mcp.ClientSession) error {
			var out apptype.CreateRelationsResult
			err := callTool(ctx, session, "create_relations", apptype.CreateRelationsArgs{
				Relations: []apptype.RelationInput{rel},
			}, &out)
			if err != nil {
				return err
			}
			if len(out.Relations) != 1 {
				return fmt.Errorf("expected 1 relation, got %d", len(out.Relations))
			}
			return nil
		}},
		{"search_nodes", func(ctx context.Context, session *mcp.ClientSession) error {
			var graph apptype.GraphResult
			if err := callTool(ctx, session, "search_nodes", apptype.SearchNodesArgs{Query: strings.ToUpper(marker)}, &graph); err != nil {
				return err
			}
			return expectEntities(graph, a)
		}},
		{"open_nodes", func(ctx context.Context, session *mcp.ClientSession) error {
			var graph apptype.GraphResult
			if err := callTool(ctx, session, "open_nodes", apptype.OpenNodesArgs{Names: []string{a, b, prefix + "-missing"}}, &graph); err != nil {
				return err
			}
			if err := expectEntities(graph, a, b); err != nil {
				return err
			}
			if len(graph.Relations) != 1 {
				return fmt.Errorf("expected 1 relation between opened nodes, got %d", len(graph.Relations))
			}
			return nil
		}},
		{"read_graph", func(ctx context.Context, session *mcp.ClientSession) error {
			var graph apptype.GraphResult
			if err := callTool(ctx, session, "read_graph", apptype.ReadGraphArgs{}, &graph); err != nil {
				return err
			}
			return containsEntities(graph, a, b)
		}},
		{"read_resources", func(ctx context.Context, session *mcp.ClientSession) error {
			for _, uri := range []string{server.GraphURI, server.EntitiesURI, server.RelationsURI, server.StatsURI, server.StatusURI} {
				res, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: uri})
				if err != nil {
					return fmt.Errorf("%s: %w", uri, err)
				}
				if len(res.Contents) != 1 || !json.Valid([]byte(res.Contents[0].Text)) {
					return fmt.Errorf("%s: expected one JSON document", uri)
				}
			}
			return nil
		}},
		{"delete_observations", func(ctx context.Context, session *mcp.ClientSession) error {
			if err := callTool(ctx, session, "delete_observations", apptype.DeleteObservationsArgs{
				Deletions: []apptype.ObservationDeletion{{EntityName: a, Observations: []string{marker}}},
			}, nil); err != nil {
				return err
			}
			var graph apptype.GraphResult
			if err := callTool(ctx, session, "search_nodes", apptype.SearchNodesArgs{Query: marker}, &graph); err != nil {
				return err
			}
			return expectEntities(graph)
		}},
		{"delete_relations", func(ctx context.Context, session *mcp.ClientSession) error {
			if err := callTool(ctx, session, "delete_relations", apptype.DeleteRelationsArgs{
				Relations: []apptype.RelationInput{rel},
			}, nil); err != nil {
				return err
			}
			var graph apptype.GraphResult
			if err := callTool(ctx, session, "open_nodes", apptype.OpenNodesArgs{Names: []string{a, b}}, &graph); err != nil {
				return err
			}
			if len(graph.Relations) != 0 {
				return fmt.Errorf("expected relation to be gone, got %d", len(graph.Relations))
			}
			return nil
		}},
		{"delete_entities", func(ctx context.Context, session *mcp.ClientSession) error {
			if err := callTool(ctx, session, "delete_entities", apptype.DeleteEntitiesArgs{EntityNames: []string{a, b}}, nil); err != nil {
				return err
			}
			var graph apptype.GraphResult
			if err := callTool(ctx, session, "open_nodes", apptype.OpenNodesArgs{Names: []string{a, b}}, &graph); err != nil {
				return err
			}
			return expectEntities(graph)
		}},
		{"health_check", func(ctx context.Context, session *mcp.ClientSession) error {
			var health apptype.HealthResult
			if err := callTool(ctx, session, "health_check", apptype.HealthArgs{}, &health); err != nil {
				return err
			}
			if !health.BackendHealthy {
				return fmt.Errorf("backend %s unhealthy: %s", health.Backend, health.Error)
			}
			return nil
		}},
	}
}

// callTool invokes name with args and decodes the structured result into
// out when out is non-nil. Error results are returned as errors.
func callTool(ctx context.Context, session *mcp.ClientSession, name string, args, out any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: json.RawMessage(raw)})
	if err != nil {
		return err
	}
	if res.IsError {
		return fmt.Errorf("%s returned an error: %s", name, resultText(res))
	}
	if out == nil {
		return nil
	}
	structured, err := json.Marshal(res.StructuredContent)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(structured, out); err != nil {
		return fmt.Errorf("%s: failed to decode structured content: %w", name, err)
	}
	return nil
}

func resultText(res *mcp.CallToolResult) string {
	parts := make([]string, 0, len(res.Content))
	for _, c := range res.Content {
		if text, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// expectEntities checks that graph holds exactly names, in order.
func expectEntities(graph apptype.GraphResult, names ...string) error {
	got := make([]string, 0, len(graph.Entities))
	for _, e := range graph.Entities {
		got = append(got, e.Name)
	}
	if strings.Join(got, ",") != strings.Join(names, ",") {
		return fmt.Errorf("expected entities %v, got %v", names, got)
	}
	return nil
}

// containsEntities checks that graph holds at least names. Other clients may
// share the server.
func containsEntities(graph apptype.GraphResult, names ...string) error {
	seen := make(map[string]bool, len(graph.Entities))
	for _, e := range graph.Entities {
		seen[e.Name] = true
	}
	for _, name := range names {
		if !seen[name] {
			return fmt.Errorf("entity %s missing from graph", name)
		}
	}
	return nil
}

// elapsedMsSince returns max(1ms, elapsed) to avoid zero durations on fast steps
func elapsedMsSince(t0 time.Time) int64 {
	d := time.Since(t0) / time.Millisecond
	if d <= 0 {
		return 1
	}
	return int64(d)
}
