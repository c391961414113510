package checklist

import (
	"fmt"
	"time"

	"reportline/internal/domain"
)

// Step is one entry of a static checklist template.
type Step struct {
	ID           string
	Title        string
	Kind         domain.ItemKind
	AssignedTeam string
	Notes        string
	DependsOn    []string
	// PreCompleted steps start complete, stamped by the system actor.
	PreCompleted bool
}

type Template struct {
	Type  domain.RequestType
	Steps []Step
}

const clientReporting = "Client Reporting"

// RG97 is the canonical five-step RG97 workflow. Each step waits on its predecessor.
var RG97 = Template{
	Type: domain.TypeRG97,
	Steps: []Step{
		{ID: "1", Title: "Request Logged", Kind: domain.KindAction, AssignedTeam: clientReporting,
			Notes: "Auto-completed when request is lodged in the system.", PreCompleted: true},
		{ID: "2", Title: "Client communication", Kind: domain.KindAction, AssignedTeam: clientReporting, DependsOn: []string{"1"}},
		{ID: "3", Title: "RG97 File Generation", Kind: domain.KindAction, AssignedTeam: "Fee Billing", DependsOn: []string{"2"}},
		{ID: "4", Title: "RG97 File Review", Kind: domain.KindReview, DependsOn: []string{"3"}},
		{ID: "5", Title: "RG97 File Sent to Client", Kind: domain.KindAction, AssignedTeam: clientReporting, DependsOn: []string{"4"}},
	},
}

// DefaultReviewTeams seed review threads when a request names no teams.
var DefaultReviewTeams = []string{"Fund Finance RE", "Fund Finance SI/LMG", "Fund Finance Infra"}

// Templates maps request types to their checklist. Types without an entry have no checklist.
var Templates = map[domain.RequestType]Template{
	domain.TypeRG97: RG97,
}

// Instantiate builds fresh items. Review threads come from reviewTeams.
func (t Template) Instantiate(reviewTeams []string, systemActor string, now time.Time) []domain.ChecklistItem {
	items := make([]domain.ChecklistItem, 0, len(t.Steps))
	for _, st := range t.Steps {
		deps := append([]string(nil), st.DependsOn...)
		switch st.Kind {
		case domain.KindReview:
			threads := make([]domain.ReviewTeamThread, 0, len(reviewTeams))
			for _, team := range reviewTeams {
				threads = append(threads, domain.ReviewTeamThread{
					Team:      team,
					Decisions: []domain.ReviewDecision{},
					Draft:     domain.EmptyDraft(),
				})
			}
			items = append(items, &domain.ReviewItem{ID: st.ID, Title: st.Title, DependsOn: deps, Teams: threads})
		default:
			a := &domain.ActionItem{
				ID:           st.ID,
				Title:        st.Title,
				DependsOn:    deps,
				AssignedTeam: st.AssignedTeam,
				Notes:        st.Notes,
				Attachments:  []domain.Attachment{},
				Status:       domain.ActionPending,
			}
			if st.PreCompleted {
				at := now
				a.Status = domain.ActionComplete
				a.CompletedAt = &at
				a.CompletedBy = systemActor
			}
			items = append(items, a)
		}
	}
	return items
}

// ValidateGraph checks ids are unique and non-empty, every dependency exists,
// and the dependency graph has no cycles. Reviews need at least one team.
func ValidateGraph(items []domain.ChecklistItem) error {
	index := make(map[string]int, len(items))
	for i, it := range items {
		id := it.ItemID()
		if id == "" {
			return fmt.Errorf("%w: item %d has empty id", ErrInvalidGraph, i)
		}
		if _, dup := index[id]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidGraph, id)
		}
		index[id] = i
		if r, ok := it.(*domain.ReviewItem); ok {
			if len(r.Teams) == 0 {
				return fmt.Errorf("%w: review %s has no teams", ErrInvalidGraph, id)
			}
			seen := map[string]bool{}
			for _, thr := range r.Teams {
				if seen[thr.Team] {
					return fmt.Errorf("%w: review %s lists team %s twice", ErrInvalidGraph, id, thr.Team)
				}
				seen[thr.Team] = true
			}
		}
	}
	for _, it := range items {
		for _, dep := range it.Dependencies() {
			if dep == it.ItemID() {
				return fmt.Errorf("%w: %s depends on itself", ErrInvalidGraph, dep)
			}
			if _, ok := index[dep]; !ok {
				return fmt.Errorf("%w: %s depends on unknown item %s", ErrInvalidGraph, it.ItemID(), dep)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(items))
	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case visiting:
			return fmt.Errorf("%w: cycle through %s", ErrInvalidGraph, items[i].ItemID())
		case done:
			return nil
		}
		state[i] = visiting
		for _, dep := range items[i].Dependencies() {
			if err := visit(index[dep]); err != nil {
				return err
			}
		}
		state[i] = done
		return nil
	}
	for i := range items {
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}
