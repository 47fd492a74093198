package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-scrutin/internal/ports"
)

func newTestBuilder(t *testing.T, wrap UnitWrapper) *PipelineBuilder {
	t.Helper()
	b, err := NewPipelineBuilder(NewDefaultUnitRegistry(), wrap)
	require.NoError(t, err)
	return b
}

func TestStagesFromConfig(t *testing.T) {
	stages := StagesFromConfig(DefaultConfig().Scrutin)

	require.Len(t, stages, 4)
	assert.Equal(t, StageBallotValidator, stages[0].Type)
	assert.Equal(t, StageTally, stages[1].Type)
	assert.Equal(t, StageMajorityJudgment, stages[2].Type)
	assert.Equal(t, StageTokenEncoder, stages[3].Type)
	assert.Equal(t, "reject", stages[0].Parameters["empty_cell"])
	assert.Equal(t, "clamp", stages[2].Parameters["degenerate_policy"])
}

func TestPipelineBuilder_Build(t *testing.T) {
	b := newTestBuilder(t, nil)
	ctx := context.Background()

	pipeline, err := b.Build(ctx, PipelineID, StagesFromConfig(DefaultConfig().Scrutin))
	require.NoError(t, err)
	assert.Equal(t, PipelineID, pipeline.ID())

	ids := make([]string, 0, 4)
	for _, exec := range pipeline.Executables() {
		ids = append(ids, exec.ID())
	}
	assert.Equal(t, []string{StageBallotValidator, StageTally, StageMajorityJudgment, StageTokenEncoder}, ids)
}

func TestPipelineBuilder_Cache(t *testing.T) {
	b := newTestBuilder(t, nil)
	ctx := context.Background()
	cfg := DefaultConfig().Scrutin

	first, err := b.Build(ctx, PipelineID, StagesFromConfig(cfg))
	require.NoError(t, err)
	second, err := b.Build(ctx, PipelineID, StagesFromConfig(cfg))
	require.NoError(t, err)
	assert.Same(t, first, second, "identical declarations share one compiled pipeline")

	cfg.EmptyCell = "abstain"
	other, err := b.Build(ctx, PipelineID, StagesFromConfig(cfg))
	require.NoError(t, err)
	assert.NotSame(t, first, other)

	b.ClearCache()
	rebuilt, err := b.Build(ctx, PipelineID, StagesFromConfig(DefaultConfig().Scrutin))
	require.NoError(t, err)
	assert.NotSame(t, first, rebuilt)
}

func TestPipelineBuilder_ConcurrentBuildsShareResult(t *testing.T) {
	b := newTestBuilder(t, nil)
	stages := StagesFromConfig(DefaultConfig().Scrutin)

	const workers = 16
	results := make([]*Pipeline, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := b.Build(context.Background(), PipelineID, stages)
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}
	wg.Wait()

	for _, p := range results[1:] {
		assert.Same(t, results[0], p)
	}
}

func TestPipelineBuilder_Wrap(t *testing.T) {
	var wrapped atomic.Int32
	b := newTestBuilder(t, func(u ports.Unit) ports.Unit {
		wrapped.Add(1)
		return u
	})

	_, err := b.Build(context.Background(), PipelineID, StagesFromConfig(DefaultConfig().Scrutin))
	require.NoError(t, err)
	assert.Equal(t, int32(4), wrapped.Load())
}

func TestPipelineBuilder_Errors(t *testing.T) {
	_, err := NewPipelineBuilder(nil, nil)
	assert.Error(t, err)

	registry := NewDefaultUnitRegistry()
	require.NoError(t, registry.RegisterUnitFactory("invalid", func(id string, _ map[string]any) (ports.Unit, error) {
		return &stubUnit{name: id, validErr: errors.New("not ready")}, nil
	}))
	b, err := NewPipelineBuilder(registry, nil)
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name    string
		stages  []StageSpec
		wantErr string
	}{
		{name: "no stages", stages: nil, wantErr: "pipeline has no stages"},
		{name: "missing id", stages: []StageSpec{{Type: StageTally}}, wantErr: "stage 0 has no id"},
		{name: "missing type", stages: []StageSpec{{ID: "t"}}, wantErr: "stage t has no type"},
		{
			name:    "duplicate id",
			stages:  []StageSpec{{ID: "t", Type: StageTally}, {ID: "t", Type: StageTally}},
			wantErr: `duplicate stage id "t"`,
		},
		{name: "unknown type", stages: []StageSpec{{ID: "x", Type: "borda_count"}}, wantErr: "unsupported unit type"},
		{
			name:    "bad parameters",
			stages:  []StageSpec{{ID: "c", Type: StageMajorityJudgment, Parameters: map[string]any{"degenerate_policy": "zero"}}},
			wantErr: "failed to create unit c",
		},
		{name: "unit fails validation", stages: []StageSpec{{ID: "i", Type: "invalid"}}, wantErr: "unit i is invalid: not ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(ctx, "p", tt.stages)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = b.Build(canceled, "p", StagesFromConfig(DefaultConfig().Scrutin))
	assert.ErrorIs(t, err, context.Canceled)
}
