package domain

import "time"

type ItemKind string

const (
	KindAction ItemKind = "action"
	KindReview ItemKind = "review"
)

type ActionStatus string

const (
	ActionPending  ActionStatus = "pending"
	ActionComplete ActionStatus = "complete"
)

// DecisionStatus is the outcome recorded in a review thread's history.
type DecisionStatus string

const (
	DecisionApproved DecisionStatus = "approved"
	DecisionRejected DecisionStatus = "rejected"
)

// DraftStatus is the status a draft or a thread can be in. Pending is only
// ever a draft (or an empty history), never a committed decision.
type DraftStatus string

const (
	DraftPending  DraftStatus = "pending"
	DraftApproved DraftStatus = "approved"
	DraftRejected DraftStatus = "rejected"
)

func ParseDraftStatus(s string) (DraftStatus, bool) {
	switch DraftStatus(s) {
	case DraftPending, DraftApproved, DraftRejected:
		return DraftStatus(s), true
	}
	return "", false
}

// ChecklistItem is implemented by *ActionItem and *ReviewItem only.
type ChecklistItem interface {
	ItemID() string
	ItemTitle() string
	Dependencies() []string
	Kind() ItemKind
	// Complete reports whether the item is finished, from its own state only.
	Complete() bool
	sealed()
}

type ActionItem struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	DependsOn    []string     `json:"depends_on,omitempty"`
	AssignedTeam string       `json:"assigned_team"`
	Notes        string       `json:"notes"`
	Attachments  []Attachment `json:"attachments"`
	Status       ActionStatus `json:"status"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	CompletedBy  string       `json:"completed_by,omitempty"`
}

func (a *ActionItem) ItemID() string         { return a.ID }
func (a *ActionItem) ItemTitle() string      { return a.Title }
func (a *ActionItem) Dependencies() []string { return a.DependsOn }
func (a *ActionItem) Kind() ItemKind         { return KindAction }
func (a *ActionItem) Complete() bool         { return a.Status == ActionComplete }
func (a *ActionItem) sealed()                {}

type ReviewItem struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	DependsOn []string           `json:"depends_on,omitempty"`
	Teams     []ReviewTeamThread `json:"teams"`
}

func (r *ReviewItem) ItemID() string         { return r.ID }
func (r *ReviewItem) ItemTitle() string      { return r.Title }
func (r *ReviewItem) Dependencies() []string { return r.DependsOn }
func (r *ReviewItem) Kind() ItemKind         { return KindReview }
func (r *ReviewItem) sealed()                {}

// Complete is true iff every thread's latest decision is an approval.
func (r *ReviewItem) Complete() bool {
	if len(r.Teams) == 0 {
		return false
	}
	for i := range r.Teams {
		if r.Teams[i].EffectiveStatus() != DraftApproved {
			return false
		}
	}
	return true
}

// Thread returns the thread for team, or nil.
func (r *ReviewItem) Thread(team string) *ReviewTeamThread {
	for i := range r.Teams {
		if r.Teams[i].Team == team {
			return &r.Teams[i]
		}
	}
	return nil
}

type ReviewDecision struct {
	Status DecisionStatus `json:"status"`
	Notes  *string        `json:"notes,omitempty"`
	Reply  *string        `json:"reply,omitempty"`
	At     time.Time      `json:"at"`
	By     string         `json:"by"`
}

type ReviewDraft struct {
	Status DraftStatus `json:"status"`
	Notes  string      `json:"notes"`
	Reply  string      `json:"reply"`
}

// EmptyDraft is the state every draft starts in and returns to after a commit.
func EmptyDraft() ReviewDraft {
	return ReviewDraft{Status: DraftPending}
}

// DraftPatch carries the fields to overwrite; nil fields are left unchanged.
type DraftPatch struct {
	Status *DraftStatus
	Notes  *string
	Reply  *string
}

func (d ReviewDraft) Merge(p DraftPatch) ReviewDraft {
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.Notes != nil {
		d.Notes = *p.Notes
	}
	if p.Reply != nil {
		d.Reply = *p.Reply
	}
	return d
}

type ReviewTeamThread struct {
	Team      string           `json:"team"`
	Decisions []ReviewDecision `json:"decisions"`
	Draft     ReviewDraft      `json:"draft"`
}

// Latest returns the last-appended decision. Append order is authoritative.
func (t *ReviewTeamThread) Latest() (ReviewDecision, bool) {
	if len(t.Decisions) == 0 {
		return ReviewDecision{}, false
	}
	return t.Decisions[len(t.Decisions)-1], true
}

func (t *ReviewTeamThread) EffectiveStatus() DraftStatus {
	last, ok := t.Latest()
	if !ok {
		return DraftPending
	}
	return DraftStatus(last.Status)
}

// Locked reports whether the thread has been approved; approval is terminal.
func (t *ReviewTeamThread) Locked() bool {
	return t.EffectiveStatus() == DraftApproved
}

// CloneItem deep-copies a checklist item so callers cannot reach live state.
func CloneItem(item ChecklistItem) ChecklistItem {
	switch it := item.(type) {
	case *ActionItem:
		c := *it
		c.DependsOn = cloneStrings(it.DependsOn)
		c.Attachments = append([]Attachment(nil), it.Attachments...)
		if it.CompletedAt != nil {
			at := *it.CompletedAt
			c.CompletedAt = &at
		}
		return &c
	case *ReviewItem:
		c := *it
		c.DependsOn = cloneStrings(it.DependsOn)
		c.Teams = make([]ReviewTeamThread, len(it.Teams))
		for i, thr := range it.Teams {
			c.Teams[i] = ReviewTeamThread{
				Team:      thr.Team,
				Decisions: make([]ReviewDecision, len(thr.Decisions)),
				Draft:     thr.Draft,
			}
			for j, d := range thr.Decisions {
				d.Notes = clonePtr(d.Notes)
				d.Reply = clonePtr(d.Reply)
				c.Teams[i].Decisions[j] = d
			}
		}
		return &c
	default:
		panic("domain: unknown checklist item type")
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
