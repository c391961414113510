package intake_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportline/internal/config"
	"reportline/internal/domain"
	"reportline/internal/intake"
)

var fixedNow = time.Date(2025, 11, 3, 10, 0, 0, 0, time.Local)

func newAssembler() *intake.Assembler {
	return intake.NewAssembler(config.Default().Catalog, 14)
}

func TestSuggestProducts(t *testing.T) {
	a := newAssembler()
	assert.Equal(t, []string{"Product E", "Product F"}, a.SuggestProducts("Client 3"))
	assert.Empty(t, a.SuggestProducts("Client 99"))

	p := a.SuggestProducts("Client 1")
	p[0] = "mutated"
	assert.Equal(t, "Product A", a.SuggestProducts("Client 1")[0])
}

func TestSuggestTeamsIsOrderedUnion(t *testing.T) {
	a := newAssembler()
	assert.Equal(t, []string{"Fee Billing"}, a.SuggestTeams(nil))
	assert.Equal(t,
		[]string{"Fee Billing", "Fund Finance SI/LMG", "Fund Finance Infra"},
		a.SuggestTeams([]string{"Product E", "Product F"}))
	assert.Equal(t,
		[]string{"Fee Billing", "Fund Finance RE"},
		a.SuggestTeams([]string{"Product D", "Product G", "Unknown"}))
}

func TestAllTeams(t *testing.T) {
	a := newAssembler()
	teams := a.AllTeams()
	assert.Equal(t, "Fee Billing", teams[0])
	assert.ElementsMatch(t, []string{
		"Fee Billing", "Fund Finance GPC", "LMG Trading Team", "Fund Finance Infra",
		"Fund Finance RE", "Fund Finance SI/LMG",
	}, teams)
}

func TestPreviousQuarter(t *testing.T) {
	tests := []struct {
		now        time.Time
		start, end string
	}{
		{time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC), "2025-07-01", "2025-09-30"},
		{time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC), "2024-10-01", "2024-12-31"},
		{time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), "2025-01-01", "2025-03-31"},
		{time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC), "2025-04-01", "2025-06-30"},
	}
	for _, tt := range tests {
		start, end := intake.PreviousQuarter(tt.now)
		assert.Equal(t, tt.start, domain.FormatDate(start), "now=%s", tt.now)
		assert.Equal(t, tt.end, domain.FormatDate(end), "now=%s", tt.now)
	}
}

func TestFiscalQuarterLabel(t *testing.T) {
	tests := map[string]string{
		"2025-06-30": "Q4 FY25",
		"2025-09-30": "Q1 FY26",
		"2024-12-31": "Q2 FY25",
		"2025-03-31": "Q3 FY25",
		"2099-07-01": "Q1 FY00",
	}
	for date, want := range tests {
		d, err := domain.ParseDate(date)
		require.NoError(t, err)
		assert.Equal(t, want, intake.FiscalQuarterLabel(d), date)
	}
}

func TestNewFormDefaults(t *testing.T) {
	f := newAssembler().NewForm(fixedNow)
	v := f.Values()
	assert.Equal(t, domain.TypeRG97, v.Type)
	assert.Equal(t, "Client 1", v.Client)
	assert.Equal(t, []string{"Product A", "Product B", "Product C"}, v.Products)
	assert.Equal(t, []string{"Fee Billing", "Fund Finance GPC", "LMG Trading Team", "Fund Finance Infra"}, v.Teams)
	assert.Equal(t, "2025-07-01", v.PeriodStart)
	assert.Equal(t, "2025-09-30", v.PeriodEnd)
	assert.Equal(t, "2025-11-03", v.RequestDate)
	assert.Equal(t, "2025-11-17", v.DueDate)
	assert.False(t, f.TeamsTouched())
}

func TestTouchedFlagSuppressesRederivation(t *testing.T) {
	f := newAssembler().NewForm(fixedNow)

	f.ToggleProduct("Product B")
	assert.NotContains(t, f.Teams(), "LMG Trading Team", "untouched teams follow products")

	f.ToggleTeam("Fund Finance GPC")
	assert.True(t, f.TeamsTouched())
	assert.Equal(t, []string{"Fee Billing", "Fund Finance Infra"}, f.Teams())

	f.ToggleProduct("Product B")
	assert.Equal(t, []string{"Fee Billing", "Fund Finance Infra"}, f.Teams(), "touched teams ignore product changes")
	assert.Equal(t, []string{"Product A", "Product C", "Product B"}, f.Products())

	require.NoError(t, f.SelectClient("Client 2"))
	assert.False(t, f.TeamsTouched())
	assert.Equal(t, []string{"Product D", "Product E"}, f.Products())
	assert.Equal(t, []string{"Fee Billing", "Fund Finance RE", "Fund Finance SI/LMG"}, f.Teams())

	err := f.SelectClient("Client 99")
	assert.ErrorIs(t, err, intake.ErrInvalidForm)
	assert.Equal(t, "Client 2", f.Client())
}

func sourceRequest() domain.Request {
	return domain.Request{
		ID: "rg97-001", Type: domain.TypeRG97, Client: "Client 1", QuarterEnd: "2025-06-30",
		RequestDate: "2025-06-15", PeriodStart: "2025-04-01", PeriodEnd: "2025-06-30", DueDate: "2025-07-14",
		Status: domain.StatusOpen, Products: []string{"Product A", "Product B"},
		Teams: []string{"Fund Finance GPC", "LMG Trading Team", "Fee Billing"},
		Notes: "Follow-up required for Product B reconciliation.",
	}
}

func TestRollForwardCarriesScopeAndNotes(t *testing.T) {
	f := newAssembler().RollForward(sourceRequest(), fixedNow)
	v := f.Values()
	assert.Equal(t, "Client 1", v.Client)
	assert.Equal(t, []string{"Product A", "Product B"}, v.Products)
	assert.Equal(t, []string{"Fund Finance GPC", "LMG Trading Team", "Fee Billing"}, v.Teams)
	assert.True(t, f.TeamsTouched(), "source teams are kept as a manual selection")
	assert.Equal(t, "2025-04-01", v.PeriodStart)
	assert.Equal(t, "2025-06-30", v.PeriodEnd)
	assert.True(t, strings.Contains(v.Notes, "Rolled forward from"))
	assert.Equal(t, "Rolled forward from rg97-001 (prev notes below)\n\nFollow-up required for Product B reconciliation.", v.Notes)
}

func TestRollForwardDatesIgnoreSource(t *testing.T) {
	src := sourceRequest()
	src.Notes = ""
	src.RequestDate = "2020-01-01"
	src.DueDate = "2020-01-02"
	v := newAssembler().RollForward(src, fixedNow).Values()
	assert.Equal(t, "2025-11-03", v.RequestDate)
	assert.Equal(t, "2025-11-17", v.DueDate)
	assert.Equal(t, "Rolled forward from rg97-001 (Quarter End: 2025-06-30)", v.Notes)
}

func TestBuild(t *testing.T) {
	a := newAssembler()
	v := a.NewForm(fixedNow).Values()
	r, err := a.Build(v, "rg97-009")
	require.NoError(t, err)
	assert.Equal(t, "rg97-009", r.ID)
	assert.Equal(t, "Q1 FY26 RG97 Request", r.Name)
	assert.Equal(t, "2025-09-30", r.QuarterEnd)
	assert.Equal(t, domain.StatusOpen, r.Status)
	assert.Equal(t, v.Products, r.Products)
	assert.Equal(t, v.Teams, r.Teams)
}

func TestBuildRejects(t *testing.T) {
	a := newAssembler()
	base := a.NewForm(fixedNow).Values()
	tests := []struct {
		name   string
		mutate func(v *intake.Values)
		id     string
	}{
		{"missing id", func(v *intake.Values) {}, ""},
		{"unknown client", func(v *intake.Values) { v.Client = "Client 99" }, "x-1"},
		{"unknown product", func(v *intake.Values) { v.Products = []string{"Product Z"} }, "x-1"},
		{"bad type", func(v *intake.Values) { v.Type = "RG98" }, "x-1"},
		{"bad date", func(v *intake.Values) { v.DueDate = "soon" }, "x-1"},
		{"inverted period", func(v *intake.Values) { v.PeriodStart, v.PeriodEnd = v.PeriodEnd, v.PeriodStart }, "x-1"},
		{"due before request", func(v *intake.Values) { v.DueDate = "2025-11-01" }, "x-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := base
			v.Products = append([]string(nil), base.Products...)
			tt.mutate(&v)
			_, err := a.Build(v, tt.id)
			assert.ErrorIs(t, err, intake.ErrInvalidForm)
		})
	}
}
