package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/engine"
	"github.com/meikuraledutech/pipeline/memory"
	"github.com/meikuraledutech/pipeline/postgres"
	"github.com/meikuraledutech/pipeline/runner"
	"github.com/meikuraledutech/pipeline/sandbox"
)

func main() {
	ctx := context.Background()

	// Wire up PostgreSQL when DATABASE_URL is set, the in-memory store otherwise.
	var store pipeline.Store = memory.New()
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
	}

	// 1. Create tables and seed the internal nodes
	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema created")

	internal := map[string]string{}
	defs, err := store.ListNodes(ctx, 100, 0)
	if err != nil {
		log.Fatalf("list nodes: %v", err)
	}
	for _, d := range defs {
		if d.IsInternal {
			internal[d.Name] = d.ID
		}
	}

	// ── A script node ─────────────────────────────────────────────────
	double, err := store.CreateNode(ctx, &pipeline.NodeDefinition{
		Name:    "Double",
		Script:  `function handle(inputs) { return { out: inputs.input.data * 2 }; }`,
		Inputs:  []string{"input"},
		Outputs: []string{"out"},
	})
	if err != nil {
		log.Fatalf("create node: %v", err)
	}
	fmt.Printf("node created: %s\n", double.ID)

	// ── A pipeline: begin → Double → end, guarded by a Breaker fed from True ──
	p, err := store.CreatePipeline(ctx, &pipeline.Pipeline{
		Name:   "double",
		Method: "POST",
		URL:    "/double",
		Content: pipeline.Graph{
			Nodes: []pipeline.GraphNode{
				graphNode("begin", internal[pipeline.NodeBeginRequest], pipeline.NodeBeginRequest),
				graphNode("yes", internal[pipeline.NodeTrue], pipeline.NodeTrue),
				graphNode("guard", internal[pipeline.NodeBreaker], pipeline.NodeBreaker),
				graphNode("double", double.ID, double.Name),
				graphNode("end", internal[pipeline.NodeEndRequest], pipeline.NodeEndRequest),
			},
			Edges: []pipeline.GraphEdge{
				control("begin", "guard"),
				control("guard", "double"),
				control("double", "end"),
				data("yes", "out", "guard", "condition"),
				data("begin", "data", "double", "input"),
				data("double", "out", "end", "data"),
			},
		},
	})
	if err != nil {
		log.Fatalf("create pipeline: %v", err)
	}
	fmt.Println("\npipeline created:")
	printJSON(p)

	// ── Run it ────────────────────────────────────────────────────────
	logger, _ := zap.NewDevelopment()
	eng := engine.New(sandbox.New(), engine.WithLogger(logger))
	r := runner.New(store, eng, runner.WithLogger(logger))

	out, err := r.Exec(ctx, "POST", "double", map[string]any{"data": 21})
	if err != nil {
		log.Fatalf("exec: %v", err)
	}
	fmt.Printf("\nresult: %s\n", out.Result)

	h, err := store.GetHistory(ctx, out.HistoryID)
	if err != nil {
		log.Fatalf("get history: %v", err)
	}
	fmt.Println("\nhistory:")
	printJSON(h)
}

func graphNode(id, defID, name string) pipeline.GraphNode {
	return pipeline.GraphNode{
		ID:   id,
		Type: "custom",
		Data: pipeline.GraphNodeData{ID: defID, Name: name},
	}
}

func control(from, to string) pipeline.GraphEdge {
	return pipeline.GraphEdge{
		ID:           from + "->" + to,
		Source:       from,
		SourceHandle: pipeline.ControlSourceHandle,
		Target:       to,
		TargetHandle: pipeline.ControlTargetHandle,
	}
}

func data(from, out, to, in string) pipeline.GraphEdge {
	return pipeline.GraphEdge{
		ID:           from + "." + out + "->" + to + "." + in,
		Source:       from,
		SourceHandle: "output-" + out,
		Target:       to,
		TargetHandle: "input-" + in,
	}
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
