package intake

import (
	"fmt"
	"strings"
	"time"

	"reportline/internal/domain"
)

// Values is a submitted request form.
type Values struct {
	Type        domain.RequestType `json:"type,omitempty" yaml:"type,omitempty"`
	Client      string             `json:"client" yaml:"client"`
	Products    []string           `json:"products" yaml:"products"`
	Teams       []string           `json:"teams" yaml:"teams"`
	PeriodStart string             `json:"period_start" yaml:"period_start"`
	PeriodEnd   string             `json:"period_end" yaml:"period_end"`
	RequestDate string             `json:"request_date" yaml:"request_date"`
	DueDate     string             `json:"due_date" yaml:"due_date"`
	Notes       string             `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Form is an in-progress request. Teams follow the selected products until
// the first direct team edit; from then on they are left as edited.
type Form struct {
	a        *Assembler
	typ      domain.RequestType
	client   string
	products []string
	teams    []string
	touched  bool

	PeriodStart string
	PeriodEnd   string
	RequestDate string
	DueDate     string
	Notes       string
}

func (a *Assembler) dates(now time.Time) (string, string) {
	return domain.FormatDate(now), domain.FormatDate(now.AddDate(0, 0, a.dueInDays))
}

// NewForm starts a blank RG97 form for the first client with the previous
// calendar quarter as period.
func (a *Assembler) NewForm(now time.Time) *Form {
	start, end := PreviousQuarter(now)
	f := &Form{a: a, typ: domain.TypeRG97}
	if len(a.clients) > 0 {
		f.client = a.clients[0]
		f.products = a.SuggestProducts(f.client)
	}
	f.PeriodStart = domain.FormatDate(start)
	f.PeriodEnd = domain.FormatDate(end)
	f.RequestDate, f.DueDate = a.dates(now)
	return f
}

// RollForward starts a form from src. Request and due dates are always
// derived from now, never from src.
func (a *Assembler) RollForward(src domain.Request, now time.Time) *Form {
	f := &Form{a: a, typ: src.Type, client: src.Client}
	if f.typ == "" {
		f.typ = domain.TypeRG97
	}
	if len(src.Products) > 0 {
		f.products = append([]string(nil), src.Products...)
	} else {
		f.products = a.SuggestProducts(src.Client)
	}
	if len(src.Teams) > 0 {
		f.teams = append([]string(nil), src.Teams...)
		f.touched = true
	}
	f.PeriodStart, f.PeriodEnd = src.PeriodStart, src.PeriodEnd
	if f.PeriodStart == "" || f.PeriodEnd == "" {
		start, end := PreviousQuarter(now)
		f.PeriodStart, f.PeriodEnd = domain.FormatDate(start), domain.FormatDate(end)
	}
	f.RequestDate, f.DueDate = a.dates(now)
	f.Notes = rollForwardNotes(src)
	return f
}

func (f *Form) Type() domain.RequestType { return f.typ }
func (f *Form) Client() string           { return f.client }
func (f *Form) Products() []string       { return append([]string{}, f.products...) }
func (f *Form) TeamsTouched() bool       { return f.touched }

// SelectClient switches client, resets products to its catalog and resumes
// deriving teams from products.
func (f *Form) SelectClient(client string) error {
	if !f.a.knownClient(client) {
		return fmt.Errorf("%w: unknown client %q", ErrInvalidForm, client)
	}
	f.client = client
	f.products = f.a.SuggestProducts(client)
	f.teams = nil
	f.touched = false
	return nil
}

func (f *Form) ToggleProduct(product string) {
	f.products = toggle(f.products, product)
}

// ToggleTeam edits the team list directly, which stops re-derivation.
func (f *Form) ToggleTeam(team string) {
	if !f.touched {
		f.teams = f.a.SuggestTeams(f.products)
		f.touched = true
	}
	f.teams = toggle(f.teams, team)
}

// Teams is the manual selection once touched, else the suggestion for the
// current products.
func (f *Form) Teams() []string {
	if f.touched {
		return append([]string{}, f.teams...)
	}
	return f.a.SuggestTeams(f.products)
}

func (f *Form) Values() Values {
	return Values{
		Type:        f.typ,
		Client:      f.client,
		Products:    f.Products(),
		Teams:       f.Teams(),
		PeriodStart: f.PeriodStart,
		PeriodEnd:   f.PeriodEnd,
		RequestDate: f.RequestDate,
		DueDate:     f.DueDate,
		Notes:       f.Notes,
	}
}

func toggle(list []string, v string) []string {
	for i, cur := range list {
		if cur == v {
			out := append([]string{}, list[:i]...)
			return append(out, list[i+1:]...)
		}
	}
	return append(append([]string{}, list...), v)
}

// Build validates v and produces a new Open request with id.
func (a *Assembler) Build(v Values, id string) (domain.Request, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Request{}, fmt.Errorf("%w: id is required", ErrInvalidForm)
	}
	typ := v.Type
	if typ == "" {
		typ = domain.TypeRG97
	}
	if _, err := domain.ParseRequestType(string(typ)); err != nil {
		return domain.Request{}, fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}
	if !a.knownClient(v.Client) {
		return domain.Request{}, fmt.Errorf("%w: unknown client %q", ErrInvalidForm, v.Client)
	}
	var products union
	for _, p := range v.Products {
		if _, ok := a.productTeams[p]; !ok {
			return domain.Request{}, fmt.Errorf("%w: unknown product %q", ErrInvalidForm, p)
		}
		products.add(p)
	}
	var teams union
	for _, t := range v.Teams {
		teams.add(strings.TrimSpace(t))
	}

	parsed := map[string]time.Time{}
	fields := []struct{ name, value string }{
		{"period_start", v.PeriodStart},
		{"period_end", v.PeriodEnd},
		{"request_date", v.RequestDate},
		{"due_date", v.DueDate},
	}
	for _, fld := range fields {
		t, err := domain.ParseDate(fld.value)
		if err != nil {
			return domain.Request{}, fmt.Errorf("%w: %s: %v", ErrInvalidForm, fld.name, err)
		}
		parsed[fld.name] = t
	}
	if parsed["period_end"].Before(parsed["period_start"]) {
		return domain.Request{}, fmt.Errorf("%w: period_end is before period_start", ErrInvalidForm)
	}
	if parsed["due_date"].Before(parsed["request_date"]) {
		return domain.Request{}, fmt.Errorf("%w: due_date is before request_date", ErrInvalidForm)
	}

	return domain.Request{
		ID:          id,
		Type:        typ,
		Name:        fmt.Sprintf("%s %s Request", FiscalQuarterLabel(parsed["period_end"]), typ),
		Client:      v.Client,
		QuarterEnd:  v.PeriodEnd,
		RequestDate: v.RequestDate,
		PeriodStart: v.PeriodStart,
		PeriodEnd:   v.PeriodEnd,
		DueDate:     v.DueDate,
		Status:      domain.StatusOpen,
		Products:    products.items(),
		Teams:       teams.items(),
		Notes:       v.Notes,
	}, nil
}
