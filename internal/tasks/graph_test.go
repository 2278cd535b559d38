package tasks

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/relicta-tech/indra/internal/errors"
)

func names(plan []*Task) []string {
	out := make([]string, len(plan))
	for i, t := range plan {
		out[i] = t.Name()
	}
	return out
}

func TestRegister(t *testing.T) {
	g := NewGraph(nil)

	task, err := g.Register("sign", KindSign)
	require.NoError(t, err)
	assert.Equal(t, "sign", task.Name())
	assert.Equal(t, KindSign, task.Kind())

	_, err = g.Register("sign", KindSign)
	assert.True(t, ierrors.IsKind(err, ierrors.KindConfig))

	_, err = g.Register("", KindSign)
	assert.Error(t, err)

	got, ok := g.Named("sign")
	assert.True(t, ok)
	assert.Same(t, task, got)
	_, ok = g.Named("missing")
	assert.False(t, ok)
}

func TestConfigureEach_ExistingAndFuture(t *testing.T) {
	g := NewGraph(nil)
	_, err := g.Register("publishCentral", KindPublishMaven)
	require.NoError(t, err)
	_, err = g.Register("requireClean", KindRequireClean)
	require.NoError(t, err)

	g.ConfigureEach(KindPublishMaven, func(t *Task) { t.DependsOn("requireClean") })

	late, err := g.Register("publishStaging", KindPublishMaven)
	require.NoError(t, err)

	for _, task := range g.OfKind(KindPublishMaven) {
		assert.Equal(t, []string{"requireClean"}, task.Dependencies(), task.Name())
	}
	assert.Equal(t, []string{"requireClean"}, late.Dependencies())

	clean, _ := g.Named("requireClean")
	assert.Empty(t, clean.Dependencies())
}

func TestDependsOn_Deduplicates(t *testing.T) {
	g := NewGraph(nil)
	task, _ := g.Register("a", KindLifecycle)
	task.DependsOn("b", "b").DependsOn("b")
	assert.Equal(t, []string{"b"}, task.Dependencies())
}

func TestPlan(t *testing.T) {
	g := NewGraph(nil)
	pub, _ := g.Register("publish", KindLifecycle)
	central, _ := g.Register("publishCentral", KindPublishMaven)
	_, _ = g.Register("requireClean", KindRequireClean)
	_, _ = g.Register("sign", KindSign)

	pub.DependsOn("publishCentral")
	central.DependsOn("requireClean", "sign")

	plan, err := g.Plan("publish")
	require.NoError(t, err)
	assert.Equal(t, []string{"requireClean", "sign", "publishCentral", "publish"}, names(plan))

	all, err := g.Plan()
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestPlan_Errors(t *testing.T) {
	t.Run("unknown target", func(t *testing.T) {
		g := NewGraph(nil)
		_, err := g.Plan("missing")
		assert.True(t, ierrors.IsKind(err, ierrors.KindNotFound))
	})

	t.Run("unknown dependency", func(t *testing.T) {
		g := NewGraph(nil)
		task, _ := g.Register("a", KindLifecycle)
		task.DependsOn("missing")
		_, err := g.Plan("a")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown task missing")
	})

	t.Run("cycle", func(t *testing.T) {
		g := NewGraph(nil)
		a, _ := g.Register("a", KindLifecycle)
		b, _ := g.Register("b", KindLifecycle)
		a.DependsOn("b")
		b.DependsOn("a")
		_, err := g.Plan("a")
		assert.True(t, ierrors.IsKind(err, ierrors.KindValidation))
	})
}

func TestExecute_OnlyIfEvaluatedAtExecution(t *testing.T) {
	var buf bytes.Buffer
	g := NewGraph(log.New(&buf))

	version := "1.0.0-SNAPSHOT"
	sign, _ := g.Register("sign", KindSign)
	sign.OnlyIf(func() bool { return version == "1.0.0" })

	var signed bool
	sign.Do(func(context.Context, *Task) error {
		signed = true
		return nil
	})

	// predicate configured while the version is a snapshot, changed later
	version = "1.0.0"

	results, err := g.Execute(context.Background(), []string{"sign"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusExecuted, results[0].Status)
	assert.True(t, signed)

	version = "2.0.0-SNAPSHOT"
	signed = false
	results, err = g.Execute(context.Background(), []string{"sign"})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, results[0].Status)
	assert.False(t, signed)
	assert.Contains(t, buf.String(), "task skipped")
}

func TestExecute_SkippedDependencyDoesNotBlock(t *testing.T) {
	g := NewGraph(nil)
	sign, _ := g.Register("sign", KindSign)
	sign.OnlyIf(func() bool { return false })

	var ran bool
	pub, _ := g.Register("publishLocal", KindPublishMavenLocal)
	pub.DependsOn("sign").Do(func(context.Context, *Task) error {
		ran = true
		return nil
	})

	results, err := g.Execute(context.Background(), []string{"publishLocal"})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, results[0].Status)
	assert.Equal(t, StatusExecuted, results[1].Status)
	assert.True(t, ran)
}

func TestExecute_StopsAtFirstFailure(t *testing.T) {
	g := NewGraph(nil)
	dirty := ierrors.State("check", "working tree has uncommitted changes")

	clean, _ := g.Register("requireClean", KindRequireClean)
	clean.Do(func(context.Context, *Task) error { return dirty })

	var published bool
	pub, _ := g.Register("publishCentral", KindPublishMaven)
	pub.DependsOn("requireClean").Do(func(context.Context, *Task) error {
		published = true
		return nil
	})

	results, err := g.Execute(context.Background(), []string{"publishCentral"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, dirty))
	assert.True(t, ierrors.IsKind(err, ierrors.KindState))
	assert.False(t, published)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, StatusNotRun, results[1].Status)
}

func TestExecute_DryRun(t *testing.T) {
	g := NewGraph(nil)
	var ran bool
	task, _ := g.Register("publishCentral", KindPublishMaven)
	task.Do(func(context.Context, *Task) error {
		ran = true
		return nil
	})

	results, err := g.Execute(context.Background(), nil, WithDryRun(true))
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, StatusExecuted, results[0].Status)
	assert.True(t, results[0].DryRun)
}

func TestExecute_Cancelled(t *testing.T) {
	g := NewGraph(nil)
	_, _ = g.Register("a", KindLifecycle)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := g.Execute(ctx, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StatusNotRun, results[0].Status)
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusNotRun, "not run"},
		{StatusExecuted, "executed"},
		{StatusSkipped, "skipped"},
		{StatusFailed, "failed"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}
