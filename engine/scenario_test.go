package engine_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/engine"
	"github.com/meikuraledutech/pipeline/sandbox"
)

const doubleGraphJSON = `{
	"nodes": [
		{"id": "n-begin", "type": "custom", "position": {"x": 0, "y": 0},
		 "data": {"id": "begin", "name": "BeginRequest", "inputs": [], "outputs": ["data"]}},
		{"id": "n-double", "type": "custom", "position": {"x": 200, "y": 0},
		 "data": {"id": "double", "name": "Double", "inputs": ["input"], "outputs": ["out"]}},
		{"id": "n-end", "type": "custom", "position": {"x": 400, "y": 0},
		 "data": {"id": "end", "name": "EndRequest", "inputs": ["data"], "outputs": []}}
	],
	"edges": [
		{"id": "c1", "source": "n-begin", "sourceHandle": "from-node", "target": "n-double", "targetHandle": "to-node"},
		{"id": "c2", "source": "n-double", "sourceHandle": "from-node", "target": "n-end", "targetHandle": "to-node"},
		{"id": "d1", "source": "n-begin", "sourceHandle": "output-data", "target": "n-double", "targetHandle": "input-input"},
		{"id": "d2", "source": "n-double", "sourceHandle": "output-out", "target": "n-end", "targetHandle": "input-data"}
	]
}`

func definitions(doubleScript string) engine.DefinitionSource {
	defs := map[string]*pipeline.NodeDefinition{
		"begin":  {ID: "begin", IsInternal: true, Name: pipeline.NodeBeginRequest, Outputs: []string{"data"}},
		"end":    {ID: "end", IsInternal: true, Name: pipeline.NodeEndRequest, Inputs: []string{"data"}},
		"double": {ID: "double", Name: "Double", Script: doubleScript, Inputs: []string{"input"}, Outputs: []string{"out"}},
	}
	return engine.DefinitionSourceFunc(func(_ context.Context, id string) (*pipeline.NodeDefinition, error) {
		return defs[id], nil
	})
}

func loadGraph(t *testing.T) pipeline.Graph {
	t.Helper()
	var g pipeline.Graph
	require.NoError(t, json.Unmarshal([]byte(doubleGraphJSON), &g))
	return g
}

func TestScenario_DoubleWithJavaScript(t *testing.T) {
	e := engine.New(sandbox.New())
	src := definitions(`function handle(inputs) { return { out: inputs.input.data * 2 }; }`)

	bound, err := e.Bind(context.Background(), loadGraph(t), src)
	require.NoError(t, err)

	var payload any
	require.NoError(t, json.Unmarshal([]byte(`{"data": 5}`), &payload))

	s, err := engine.Seed(bound, payload)
	require.NoError(t, err)
	s = engine.InitialWave(s)
	for !s.IsComplete() {
		s, err = e.DispatchWave(s)
		require.NoError(t, err)
		s = e.AdvanceWave(s)
	}

	record, err := json.Marshal(s.Cache()["n-end"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"data": 10}`, string(record))

	result, err := engine.ExtractResult(s)
	require.NoError(t, err)
	assert.JSONEq(t, `10`, string(result))
}

func TestScenario_ScriptWithoutEntryFunction(t *testing.T) {
	e := engine.New(sandbox.New())
	src := definitions(`function process(inputs) { return { out: 1 }; }`)

	_, err := e.Run(context.Background(), loadGraph(t), src, map[string]any{"data": 5.0})
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrScriptRuntime)
	assert.ErrorIs(t, err, engine.ErrEntryFunctionMissing)
	assert.Contains(t, err.Error(), "n-double")
}

func TestScenario_ScriptDropsDeclaredOutput(t *testing.T) {
	e := engine.New(sandbox.New())
	src := definitions(`function handle(inputs) { return { result: inputs.input.data }; }`)

	_, err := e.Run(context.Background(), loadGraph(t), src, map[string]any{"data": 5.0})
	assert.ErrorIs(t, err, engine.ErrMissingDeclaredOutput)
}

func TestScenario_UndeclaredFieldsAreIgnored(t *testing.T) {
	e := engine.New(sandbox.New())
	src := definitions(`function handle(inputs) {
		total = inputs.input.data * 2;
		return { out: total, helper: function() {}, ratio: 0/0 };
	}`)

	result, err := e.Run(context.Background(), loadGraph(t), src, map[string]any{"data": 5.0})
	require.NoError(t, err)
	assert.JSONEq(t, `10`, string(result))
}

func TestScenario_DataEdgeIntoEntryIsIgnored(t *testing.T) {
	g := loadGraph(t)
	g.Edges = append(g.Edges, pipeline.GraphEdge{
		ID: "d3", Source: "n-double", SourceHandle: "output-out",
		Target: "n-begin", TargetHandle: "input-echo",
	})

	e := engine.New(sandbox.New())
	src := definitions(`function handle(inputs) { return { out: inputs.input.data * 2 }; }`)

	result, err := e.Run(context.Background(), g, src, map[string]any{"data": 5.0})
	require.NoError(t, err)
	assert.JSONEq(t, `10`, string(result))
}
