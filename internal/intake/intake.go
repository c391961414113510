// Package intake assembles new report requests from a client/product/team
// catalog, either from scratch or rolled forward from an earlier request.
package intake

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"reportline/internal/config"
	"reportline/internal/domain"
)

var ErrInvalidForm = errors.New("invalid request form")

// DefaultDueInDays is used when an Assembler is built without a due window.
const DefaultDueInDays = 14

type Assembler struct {
	clients        []string
	clientProducts map[string][]string
	productTeams   map[string][]string
	alwaysTeams    []string
	dueInDays      int
}

func NewAssembler(cat config.Catalog, dueInDays int) *Assembler {
	if dueInDays <= 0 {
		dueInDays = DefaultDueInDays
	}
	a := &Assembler{
		clients:        append([]string(nil), cat.Clients...),
		clientProducts: make(map[string][]string, len(cat.ClientProducts)),
		productTeams:   make(map[string][]string, len(cat.ProductTeams)),
		alwaysTeams:    append([]string(nil), cat.AlwaysTeams...),
		dueInDays:      dueInDays,
	}
	for k, v := range cat.ClientProducts {
		a.clientProducts[k] = append([]string(nil), v...)
	}
	for k, v := range cat.ProductTeams {
		a.productTeams[k] = append([]string(nil), v...)
	}
	return a
}

func (a *Assembler) Clients() []string {
	return append([]string(nil), a.clients...)
}

func (a *Assembler) knownClient(client string) bool {
	for _, c := range a.clients {
		if c == client {
			return true
		}
	}
	return false
}

// SuggestProducts is the static catalog lookup for client. Unknown clients
// have no products.
func (a *Assembler) SuggestProducts(client string) []string {
	return append([]string{}, a.clientProducts[client]...)
}

// SuggestTeams is the ordered union of the always-included teams and the
// team mappings of products.
func (a *Assembler) SuggestTeams(products []string) []string {
	var u union
	u.add(a.alwaysTeams...)
	for _, p := range products {
		u.add(a.productTeams[p]...)
	}
	return u.items()
}

// AllTeams lists every team the catalog knows about, always-included first,
// then in client and product catalog order.
func (a *Assembler) AllTeams() []string {
	var u union
	u.add(a.alwaysTeams...)
	for _, c := range a.clients {
		for _, p := range a.clientProducts[c] {
			u.add(a.productTeams[p]...)
		}
	}
	return u.items()
}

// union is an insertion-ordered string set.
type union struct {
	seen map[string]bool
	list []string
}

func (u *union) add(vals ...string) {
	if u.seen == nil {
		u.seen = map[string]bool{}
	}
	for _, v := range vals {
		if v == "" || u.seen[v] {
			continue
		}
		u.seen[v] = true
		u.list = append(u.list, v)
	}
}

func (u *union) items() []string {
	return append([]string{}, u.list...)
}

// PreviousQuarter returns the first and last day of the calendar quarter
// before the one containing now.
func PreviousQuarter(now time.Time) (time.Time, time.Time) {
	current := (int(now.Month()) - 1) / 3
	prev := (current + 3) % 4
	year := now.Year()
	if current == 0 {
		year--
	}
	start := time.Date(year, time.Month(prev*3+1), 1, 0, 0, 0, 0, now.Location())
	end := time.Date(year, time.Month(prev*3+4), 0, 0, 0, 0, 0, now.Location())
	return start, end
}

// FiscalQuarterLabel names the Australian financial-year quarter containing
// date, for example "Q4 FY25" for 2025-06-30.
func FiscalQuarterLabel(date time.Time) string {
	m := int(date.Month())
	q := ((m-7+12)%12)/3 + 1
	fy := date.Year()
	if m > 6 {
		fy++
	}
	return fmt.Sprintf("Q%d FY%02d", q, fy%100)
}

func rollForwardNotes(src domain.Request) string {
	if strings.TrimSpace(src.Notes) != "" {
		return fmt.Sprintf("Rolled forward from %s (prev notes below)\n\n%s", src.ID, src.Notes)
	}
	return fmt.Sprintf("Rolled forward from %s (Quarter End: %s)", src.ID, src.QuarterEnd)
}
