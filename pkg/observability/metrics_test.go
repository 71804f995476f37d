package observability_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/bale/pkg/domain"
	"github.com/aretw0/bale/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	m := observability.NewMetrics()
	h := m.Hooks()
	ctx := context.Background()

	h.OnStage(ctx, &domain.StageEvent{To: domain.StageResolving})
	h.OnModuleTransformed(ctx, &domain.ModuleEvent{Module: "/a.js", Duration: time.Millisecond})
	h.OnModuleTransformed(ctx, &domain.ModuleEvent{Module: "/b.js", Cached: true})
	h.OnBuildDone(ctx, &domain.BuildResult{Stage: domain.StageDone, Stats: domain.BuildStats{Modules: 2, BytesWritten: 10}})
	h.OnBuildDone(ctx, &domain.BuildResult{
		Stage:  domain.StageFailed,
		Errors: []error{fmt.Errorf("%w: stop", domain.ErrBuildCancelled)},
	})

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `bale_builds_total{result="succeeded"} 1`)
	assert.Contains(t, body, `bale_builds_total{result="cancelled"} 1`)
	assert.Contains(t, body, `bale_modules_transformed_total{source="cache"} 1`)
	assert.Contains(t, body, `bale_stage_transitions_total{stage="resolving"} 1`)
	assert.True(t, strings.Contains(body, "bale_bytes_written_total 10"))
	assert.Contains(t, body, "bale_graph_modules 0", "the failed build reports its own module count")
}

func TestBuildOutcome(t *testing.T) {
	assert.Equal(t, "succeeded", observability.BuildOutcome(&domain.BuildResult{Stage: domain.StageDone}))
	assert.Equal(t, "failed", observability.BuildOutcome(&domain.BuildResult{Stage: domain.StageFailed}))
}
