package checklist_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reportline/internal/checklist"
	"reportline/internal/domain"
)

var errMissing = errors.New("missing")

type mapFinder map[string]domain.Request

func (m mapFinder) FindByID(_ context.Context, id string) (domain.Request, error) {
	r, ok := m[id]
	if !ok {
		return domain.Request{}, errMissing
	}
	return r, nil
}

func TestRegistryReusesSessions(t *testing.T) {
	finder := mapFinder{"rg97-001": rg97Request("A")}
	reg := checklist.NewRegistry(finder, zap.NewNop(), checklist.WithActor("tester"))
	ctx := context.Background()

	s1, err := reg.Session(ctx, "rg97-001")
	require.NoError(t, err)
	_, err = s1.MarkActionComplete("2")
	require.NoError(t, err)

	s2, err := reg.Session(ctx, "rg97-001")
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, "tester", s2.Actor())
	assert.Equal(t, 1, s2.Audit().Len())
}

func TestRegistryPropagatesErrors(t *testing.T) {
	reg := checklist.NewRegistry(mapFinder{
		"ter-004": {ID: "ter-004", Type: domain.TypeTER},
	}, nil)
	_, err := reg.Session(context.Background(), "nope")
	assert.ErrorIs(t, err, errMissing)
	_, err = reg.Session(context.Background(), "ter-004")
	assert.ErrorIs(t, err, checklist.ErrNoTemplate)
	_, err = reg.Session(context.Background(), "ter-004")
	assert.ErrorIs(t, err, checklist.ErrNoTemplate, "failed lookups are not cached")
}
