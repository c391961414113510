package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reportline/internal/app"
	"reportline/internal/config"
	"reportline/internal/domain"
	"reportline/internal/engine"
)

func TestResolveConfigOrder(t *testing.T) {
	dir := t.TempDir()
	cfg, src, err := app.ResolveConfig("", dir)
	require.NoError(t, err)
	assert.Equal(t, "defaults", src)
	assert.Equal(t, config.Default(), cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte("actor: from-workspace\n"), 0o644))
	cfg, src, err = app.ResolveConfig("", dir)
	require.NoError(t, err)
	assert.Equal(t, config.Path(dir), src)
	assert.Equal(t, "from-workspace", cfg.Actor)

	explicit := filepath.Join(dir, "other.yml")
	require.NoError(t, os.WriteFile(explicit, []byte("actor: explicit\n"), 0o644))
	cfg, src, err = app.ResolveConfig(explicit, dir)
	require.NoError(t, err)
	assert.Equal(t, explicit, src)
	assert.Equal(t, "explicit", cfg.Actor)

	_, _, err = app.ResolveConfig(filepath.Join(dir, "missing.yml"), dir)
	assert.Error(t, err)
}

func TestBootstrapSeedsInMemoryCatalog(t *testing.T) {
	ctx := context.Background()
	e, closeDB, err := app.Bootstrap(ctx, nil, zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { closeDB() })

	all, err := allRequests(ctx, e)
	require.NoError(t, err)
	assert.Len(t, all, 8)

	other, closeOther, err := app.Bootstrap(ctx, nil, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { closeOther() })
	_, err = e.CreateRequest(ctx, e.NewRequestForm())
	require.NoError(t, err)
	rest, err := allRequests(ctx, other)
	require.NoError(t, err)
	assert.Len(t, rest, 8, "bootstrapped engines do not share state")
}

func TestBootstrapWithFileDatabase(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "data", "reportline.db")
	ctx := context.Background()

	e, closeDB, err := app.Bootstrap(ctx, cfg, nil, nil)
	require.NoError(t, err)
	_, err = e.CreateRequest(ctx, e.NewRequestForm())
	require.NoError(t, err)
	require.NoError(t, closeDB())

	again, closeAgain, err := app.Bootstrap(ctx, cfg, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { closeAgain() })
	all, err := allRequests(ctx, again)
	require.NoError(t, err)
	assert.Len(t, all, 9)
}

func TestNewLogger(t *testing.T) {
	for _, debug := range []bool{true, false} {
		logger, err := app.NewLogger(debug)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
}

func allRequests(ctx context.Context, e engine.Engine) ([]domain.Request, error) {
	var all []domain.Request
	for _, typ := range domain.RequestTypes {
		reqs, err := e.ListRequests(ctx, typ, domain.Filter{})
		if err != nil {
			return nil, err
		}
		all = append(all, reqs...)
	}
	return all, nil
}
