package processor

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/ai-gateway-go/internal/injection"
	"github.com/Davincible/ai-gateway-go/internal/router"
	"github.com/Davincible/ai-gateway-go/internal/telemetry"
)

type recordStep struct {
	name       string
	enabled    bool
	bestEffort bool
	err        error
	log        *[]string
}

func (s *recordStep) Name() string     { return s.name }
func (s *recordStep) Enabled() bool    { return s.enabled }
func (s *recordStep) BestEffort() bool { return s.bestEffort }

func (s *recordStep) Execute(_ context.Context, _ *RequestContext, _ map[string]any) error {
	*s.log = append(*s.log, s.name)
	return s.err
}

func TestPipelineRunsStepsInOrder(t *testing.T) {
	var log []string
	p := NewPipeline(slog.Default(),
		&recordStep{name: "one", enabled: true, log: &log},
		&recordStep{name: "two", enabled: false, log: &log},
		&recordStep{name: "three", enabled: true, log: &log},
	)

	rc := NewRequestContext(FrontendOpenAI, "m")
	require.NoError(t, p.Run(context.Background(), rc, map[string]any{}))
	assert.Equal(t, []string{"one", "three"}, log)
}

func TestPipelineStopsOnFailure(t *testing.T) {
	var log []string
	p := NewPipeline(slog.Default(),
		&recordStep{name: "one", enabled: true, log: &log},
		&recordStep{name: "two", enabled: true, err: errors.New("boom"), log: &log},
		&recordStep{name: "three", enabled: true, log: &log},
	)

	err := p.Run(context.Background(), NewRequestContext(FrontendOpenAI, "m"), nil)
	require.Error(t, err)
	assert.Equal(t, []string{"one", "two"}, log)

	pe := AsProcessError(err)
	assert.Equal(t, "two", pe.Step)
	assert.Equal(t, KindInternal, pe.Kind)
}

func TestPipelineBestEffortContinues(t *testing.T) {
	var log []string
	p := NewPipeline(slog.Default(),
		&recordStep{name: "hook", enabled: true, bestEffort: true, err: errors.New("boom"), log: &log},
		&recordStep{name: "after", enabled: true, log: &log},
	)

	require.NoError(t, p.Run(context.Background(), NewRequestContext(FrontendOpenAI, "m"), nil))
	assert.Equal(t, []string{"hook", "after"}, log)
}

func TestPipelineCancelledContext(t *testing.T) {
	var log []string
	p := NewPipeline(slog.Default(), &recordStep{name: "one", enabled: true, log: &log})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Run(ctx, NewRequestContext(FrontendOpenAI, "m"), nil)
	require.Error(t, err)
	assert.Equal(t, KindCancelled, AsProcessError(err).Kind)
	assert.Empty(t, log)
}

func TestAuthStep(t *testing.T) {
	step := &AuthStep{Key: "secret"}
	require.True(t, step.Enabled())

	rc := NewRequestContext(FrontendOpenAI, "m")
	rc.ClientKey = "secret"
	assert.NoError(t, step.Execute(context.Background(), rc, nil))

	rc.ClientKey = "wrong"
	err := step.Execute(context.Background(), rc, nil)
	require.Error(t, err)
	assert.Equal(t, KindAuthentication, AsProcessError(err).Kind)

	assert.False(t, (&AuthStep{}).Enabled())
}

func TestInjectionStep(t *testing.T) {
	inj := injection.NewInjector(nil)
	inj.AddRule(injection.Rule{
		ID:      "temp",
		Pattern: "gpt-*",
		Params:  map[string]any{"temperature": 0.2},
		Enabled: true,
		Mode:    injection.ModeMerge,
	})
	step := &InjectionStep{Injector: inj}

	rc := NewRequestContext(FrontendOpenAI, "gpt-4o")
	payload := map[string]any{"model": "gpt-4o"}
	require.NoError(t, step.Execute(context.Background(), rc, payload))
	assert.Equal(t, 0.2, payload["temperature"])
	assert.Equal(t, []string{"temperature"}, rc.InjectedParams)

	err := step.Execute(context.Background(), rc, nil)
	require.Error(t, err)
	assert.Equal(t, KindInjection, AsProcessError(err).Kind)
}

func TestRoutingStep(t *testing.T) {
	rt := router.New("default-provider")
	rt.AddRule(router.Rule{Pattern: "claude-*", TargetProvider: "kiro", Enabled: true})
	mapper := router.NewModelMapper(map[string]string{"sonnet": "claude-sonnet-4-5"})

	step := &RoutingStep{Router: rt, Mapper: mapper}

	rc := NewRequestContext(FrontendOpenAI, "sonnet")
	payload := map[string]any{"model": "sonnet"}
	require.NoError(t, step.Execute(context.Background(), rc, payload))
	assert.Equal(t, "claude-sonnet-4-5", rc.Model)
	assert.Equal(t, "claude-sonnet-4-5", payload["model"])
	assert.Equal(t, "kiro", rc.Provider)
	assert.Equal(t, "claude-*", rc.ResolvedRule)
}

func TestRoutingStepForcedProvider(t *testing.T) {
	rt := router.New("default-provider")
	step := &RoutingStep{Router: rt}

	rc := NewRequestContext(FrontendOpenAI, "anything")
	rc.ForceProvider = "openrouter"
	require.NoError(t, step.Execute(context.Background(), rc, nil))
	assert.Equal(t, "openrouter", rc.Provider)
}

func TestTelemetryStepRecords(t *testing.T) {
	stats := telemetry.NewStats()
	step := &TelemetryStep{Stats: stats}

	rc := NewRequestContext(FrontendOpenAI, "gpt-4o")
	rc.Provider = "openai"
	rc.Retries = 1
	rc.Usage.InputTokens = 10
	rc.Usage.OutputTokens = 20

	require.NoError(t, step.Execute(context.Background(), rc, nil))

	ps, ok := stats.Provider("openai")
	require.True(t, ok)
	assert.Equal(t, int64(1), ps.Requests)
	assert.Equal(t, int64(1), ps.Retries)
	assert.Equal(t, int64(10), ps.InputTokens)
	assert.Equal(t, int64(20), ps.OutputTokens)
	assert.Equal(t, int64(0), ps.Failures)
}

func TestTelemetryStepEstimatesMissingInputTokens(t *testing.T) {
	stats := telemetry.NewStats()
	step := &TelemetryStep{Stats: stats, Counter: telemetry.NewTokenCounter()}

	rc := NewRequestContext(FrontendOpenAI, "gpt-4o")
	rc.Provider = "openai"

	payload := map[string]any{
		"messages": []any{
			map[string]any{"role": "user", "content": "Hello there"},
			map[string]any{"role": "user", "content": []any{
				map[string]any{"type": "text", "text": "part"},
			}},
		},
	}
	require.NoError(t, step.Execute(context.Background(), rc, payload))

	ps, ok := stats.Provider("openai")
	require.True(t, ok)
	assert.Greater(t, ps.InputTokens, int64(0))
}
