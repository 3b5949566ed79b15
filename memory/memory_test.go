package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/pipeline"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	require.NoError(t, s.CreateSchema(context.Background()))
	return s
}

func samplePipeline() *pipeline.Pipeline {
	return &pipeline.Pipeline{
		Name:   "double",
		Method: "post",
		URL:    "/double",
		Content: pipeline.Graph{
			Nodes: []pipeline.GraphNode{{ID: "begin"}, {ID: "end"}},
			Edges: []pipeline.GraphEdge{{
				ID: "c", Source: "begin", SourceHandle: pipeline.ControlSourceHandle,
				Target: "end", TargetHandle: pipeline.ControlTargetHandle,
			}},
		},
	}
}

func TestCreateSchema_SeedsInternalNodesOnce(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSchema(ctx))

	n, err := s.CountNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	nodes, err := s.ListNodes(ctx, 20, 0)
	require.NoError(t, err)
	for i := range nodes {
		assert.True(t, nodes[i].IsInternal)
		assert.ErrorIs(t, s.UpdateNode(ctx, &nodes[i]), pipeline.ErrNodeReadOnly)
		assert.ErrorIs(t, s.DeleteNode(ctx, nodes[i].ID), pipeline.ErrNodeReadOnly)
	}
}

func TestNodes(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	created, err := s.CreateNode(ctx, &pipeline.NodeDefinition{Name: "Double", IsInternal: true, Inputs: []string{"input"}})
	require.NoError(t, err)
	assert.False(t, created.IsInternal)
	assert.Equal(t, []string{}, created.Outputs)

	got, err := s.GetNode(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	got.Name = "mutated"
	again, err := s.GetNode(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Double", again.Name)

	nodes, err := s.ListNodes(ctx, 20, 0)
	require.NoError(t, err)
	require.Len(t, nodes, 7)
	assert.Equal(t, created.ID, nodes[6].ID)

	nodes, err = s.ListNodes(ctx, 2, 5)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	require.NoError(t, s.DeleteNode(ctx, created.ID))
	require.NoError(t, s.DeleteNode(ctx, created.ID))
	missing, err := s.GetNode(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.ErrorIs(t, s.UpdateNode(ctx, created), pipeline.ErrNodeNotFound)
}

func TestPipelines(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	p, err := s.CreatePipeline(ctx, samplePipeline())
	require.NoError(t, err)
	assert.Equal(t, "POST", p.Method)
	assert.Equal(t, "double", p.URL)

	found, err := s.FindPipeline(ctx, "POST", "double/")
	require.NoError(t, err)
	assert.Equal(t, p, found)

	_, err = s.CreatePipeline(ctx, samplePipeline())
	assert.ErrorIs(t, err, pipeline.ErrRouteConflict)

	other := samplePipeline()
	other.URL = "triple"
	other, err = s.CreatePipeline(ctx, other)
	require.NoError(t, err)

	other.URL = "double"
	assert.ErrorIs(t, s.UpdatePipeline(ctx, other), pipeline.ErrRouteConflict)

	other.URL = "quadruple"
	other.Content.Edges = append(other.Content.Edges, pipeline.GraphEdge{
		ID: "back", Source: "end", SourceHandle: pipeline.ControlSourceHandle, Target: "begin", TargetHandle: pipeline.ControlTargetHandle,
	})
	assert.ErrorIs(t, s.UpdatePipeline(ctx, other), pipeline.ErrCycleDetected)

	ghost := samplePipeline()
	ghost.ID, ghost.URL = "ghost", "ghost"
	assert.ErrorIs(t, s.UpdatePipeline(ctx, ghost), pipeline.ErrPipelineNotFound)

	list, err := s.ListPipelines(ctx, 20, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, p.ID, list[0].ID)

	_, err = s.CreateHistory(ctx, p.ID, pipeline.StatusPreparing)
	require.NoError(t, err)
	require.NoError(t, s.DeletePipeline(ctx, p.ID))
	n, err := s.CountHistory(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHistory(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	first, err := s.CreateHistory(ctx, "p1", pipeline.StatusPreparing)
	require.NoError(t, err)
	second, err := s.CreateHistory(ctx, "p2", pipeline.StatusPreparing)
	require.NoError(t, err)

	require.NoError(t, s.SetHistoryStatus(ctx, first.ID, pipeline.StatusRunning))
	require.NoError(t, s.SucceedHistory(ctx, first.ID, json.RawMessage(`10`)))
	require.NoError(t, s.FailHistory(ctx, second.ID, "boom"))

	got, err := s.GetHistory(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusSucceeded, got.Status)
	assert.JSONEq(t, `10`, string(got.Result))
	require.NotNil(t, got.EndAt)
	assert.True(t, got.EndAt.After(got.StartAt))

	got, err = s.GetHistory(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "boom", *got.Error)

	all, err := s.ListHistory(ctx, "", 20, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	only, err := s.ListHistory(ctx, "p1", 20, 0)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, first.ID, only[0].ID)

	assert.ErrorIs(t, s.SetHistoryStatus(ctx, "ghost", pipeline.StatusRunning), pipeline.ErrHistoryNotFound)
	missing, err := s.GetHistory(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLogs(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	first, err := s.CreateLog(ctx, pipeline.LevelInfo, "http", "GET /ping - 200 0.0.0.0")
	require.NoError(t, err)
	second, err := s.CreateLog(ctx, pipeline.LevelError, "exec", "boom")
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	list, err := s.ListLogs(ctx, 20, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	require.NoError(t, s.DeleteLog(ctx, first.ID))
	assert.ErrorIs(t, s.DeleteLog(ctx, first.ID), pipeline.ErrLogNotFound)

	n, err := s.CountLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDropSchema(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	_, err := s.CreatePipeline(ctx, samplePipeline())
	require.NoError(t, err)

	require.NoError(t, s.DropSchema(ctx))

	n, err := s.CountNodes(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.CountPipelines(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
