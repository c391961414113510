package main

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportline/internal/app"
	"reportline/internal/config"
	"reportline/internal/domain"
	"reportline/internal/engine"
	"reportline/internal/intake"
)

var formNow = time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

func parseFormFlags(t *testing.T, args ...string) (*cobra.Command, *formFlags) {
	t.Helper()
	var flags formFlags
	cmd := &cobra.Command{Use: "form"}
	flags.register(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, &flags
}

func newFormEngine(t *testing.T) engine.Engine {
	t.Helper()
	e, closeDB, err := app.Bootstrap(context.Background(), config.Default(), nil, func() time.Time { return formNow })
	require.NoError(t, err)
	t.Cleanup(func() { closeDB() })
	return e
}

func TestRollForwardProductFlagKeepsCarriedTeams(t *testing.T) {
	e := newFormEngine(t)
	form, err := e.RollForwardForm(context.Background(), "rg97-001")
	require.NoError(t, err)

	cmd, flags := parseFormFlags(t, "--product", "Product A", "--product", "Product C")
	v, err := flags.apply(cmd, form)
	require.NoError(t, err)
	assert.Equal(t, "Client 1", v.Client)
	assert.Equal(t, []string{"Product A", "Product C"}, v.Products)
	assert.Equal(t, []string{"Fund Finance GPC", "LMG Trading Team", "Fee Billing"}, v.Teams)
	assert.Contains(t, v.Notes, "Rolled forward from rg97-001")
}

func TestRollForwardProductFlagKeepsManualTeams(t *testing.T) {
	a := intake.NewAssembler(config.Default().Catalog, 14)
	form := a.RollForward(domain.Request{
		ID:          "rg97-010",
		Type:        domain.TypeRG97,
		Client:      "Client 1",
		Products:    []string{"Product A"},
		Teams:       []string{"Manual Team"},
		PeriodStart: "2025-04-01",
		PeriodEnd:   "2025-06-30",
		QuarterEnd:  "2025-06-30",
	}, formNow)

	cmd, flags := parseFormFlags(t, "--product", "Product A", "--product", "Product B")
	v, err := flags.apply(cmd, form)
	require.NoError(t, err)
	assert.Equal(t, []string{"Product A", "Product B"}, v.Products)
	assert.Equal(t, []string{"Manual Team"}, v.Teams)
	assert.True(t, form.TeamsTouched())
}

func TestClientFlagResumesSuggestions(t *testing.T) {
	e := newFormEngine(t)
	form, err := e.RollForwardForm(context.Background(), "rg97-001")
	require.NoError(t, err)

	cmd, flags := parseFormFlags(t, "--client", "Client 4")
	v, err := flags.apply(cmd, form)
	require.NoError(t, err)
	assert.Equal(t, []string{"Product F", "Product G"}, v.Products)
	assert.Equal(t, []string{"Fee Billing", "Fund Finance Infra", "Fund Finance SI/LMG", "Fund Finance RE"}, v.Teams)
	assert.False(t, form.TeamsTouched())
}

func TestNewFormFlags(t *testing.T) {
	e := newFormEngine(t)

	cmd, flags := parseFormFlags(t, "--product", "Product A", "--notes", "first pass", "--due-date", "2025-12-01")
	v, err := flags.apply(cmd, e.NewForm())
	require.NoError(t, err)
	assert.Equal(t, []string{"Product A"}, v.Products)
	assert.Equal(t, []string{"Fee Billing", "Fund Finance GPC"}, v.Teams, "untouched teams follow the products")
	assert.Equal(t, "first pass", v.Notes)
	assert.Equal(t, "2025-12-01", v.DueDate)
	assert.Equal(t, "2025-07-01", v.PeriodStart)

	cmd, flags = parseFormFlags(t, "--team", "Fee Billing", "--team", "Custom Team")
	v, err = flags.apply(cmd, e.NewForm())
	require.NoError(t, err)
	assert.Equal(t, []string{"Fee Billing", "Custom Team"}, v.Teams)
	assert.Equal(t, []string{"Product A", "Product B", "Product C"}, v.Products)
}

func TestFormFlagsRejectUnknownClient(t *testing.T) {
	e := newFormEngine(t)
	cmd, flags := parseFormFlags(t, "--client", "Nobody")
	_, err := flags.apply(cmd, e.NewForm())
	assert.ErrorIs(t, err, intake.ErrInvalidForm)
}
