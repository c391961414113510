package server

import (
	"time"

	"reportline/internal/audit"
	"reportline/internal/domain"
	"reportline/internal/engine"
	"reportline/internal/events"
	"reportline/internal/intake"
)

// Request payloads

type FormValuesRequest struct {
	Type        string   `json:"type,omitempty" enum:"RG97,TER,MySuper"`
	Client      string   `json:"client"`
	Products    []string `json:"products"`
	Teams       []string `json:"teams"`
	PeriodStart string   `json:"period_start" format:"date"`
	PeriodEnd   string   `json:"period_end" format:"date"`
	RequestDate string   `json:"request_date" format:"date"`
	DueDate     string   `json:"due_date" format:"date"`
	Notes       string   `json:"notes,omitempty"`
}

func (r FormValuesRequest) values() intake.Values {
	return intake.Values{
		Type:        domain.RequestType(r.Type),
		Client:      r.Client,
		Products:    r.Products,
		Teams:       r.Teams,
		PeriodStart: r.PeriodStart,
		PeriodEnd:   r.PeriodEnd,
		RequestDate: r.RequestDate,
		DueDate:     r.DueDate,
		Notes:       r.Notes,
	}
}

type FileRequest struct {
	Name string `json:"name" minLength:"1"`
	Size int64  `json:"size" minimum:"0"`
}

type AddAttachmentsRequest struct {
	Files []FileRequest `json:"files"`
}

type SetNotesRequest struct {
	Notes string `json:"notes"`
}

type DraftRequest struct {
	Team   string  `json:"team" minLength:"1"`
	Status *string `json:"status,omitempty" enum:"pending,approved,rejected"`
	Notes  *string `json:"notes,omitempty"`
	Reply  *string `json:"reply,omitempty"`
}

type ConfirmRequest struct {
	Team string `json:"team" minLength:"1"`
}

// Responses

type RequestResponse struct {
	ID           string               `json:"id"`
	Type         string               `json:"type"`
	Name         string               `json:"name"`
	Client       string               `json:"client"`
	QuarterEnd   string               `json:"quarter_end"`
	QuarterLabel string               `json:"quarter_label"`
	RequestDate  string               `json:"request_date"`
	PeriodStart  string               `json:"period_start"`
	PeriodEnd    string               `json:"period_end"`
	DueDate      string               `json:"due_date"`
	Status       string               `json:"status"`
	Products     []string             `json:"products"`
	Teams        []string             `json:"teams"`
	Notes        string               `json:"notes,omitempty"`
	Attachments  []AttachmentResponse `json:"attachments"`
}

type AttachmentResponse struct {
	Name string `json:"name"`
	Size string `json:"size,omitempty"`
}

type RequestListResponse struct {
	Items   []RequestResponse    `json:"items"`
	Filters engine.FilterOptions `json:"filters"`
}

type DashboardResponse struct {
	Items []engine.TypeCount `json:"items"`
}

type FormValuesResponse struct {
	Type        string   `json:"type"`
	Client      string   `json:"client"`
	Products    []string `json:"products"`
	Teams       []string `json:"teams"`
	PeriodStart string   `json:"period_start"`
	PeriodEnd   string   `json:"period_end"`
	RequestDate string   `json:"request_date"`
	DueDate     string   `json:"due_date"`
	Notes       string   `json:"notes,omitempty"`
}

type SuggestionsResponse struct {
	Client   string   `json:"client"`
	Products []string `json:"products"`
	Teams    []string `json:"teams"`
	AllTeams []string `json:"all_teams"`
}

type ProgressResponse struct {
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Next      string `json:"next,omitempty"`
	Done      bool   `json:"done"`
}

type ChecklistResponse struct {
	RequestID string                  `json:"request_id"`
	Progress  ProgressResponse        `json:"progress"`
	Items     []ChecklistItemResponse `json:"items"`
}

// ChecklistItemResponse flattens both item kinds; Type says which fields apply.
type ChecklistItemResponse struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Type         string   `json:"type" enum:"action,review"`
	DependsOn    []string `json:"depends_on"`
	Complete     bool     `json:"complete"`
	Interactable bool     `json:"interactable"`

	AssignedTeam string               `json:"assigned_team,omitempty"`
	Status       string               `json:"status,omitempty"`
	Notes        string               `json:"notes,omitempty"`
	Attachments  []AttachmentResponse `json:"attachments,omitempty"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
	CompletedBy  string               `json:"completed_by,omitempty"`

	Teams []ReviewThreadResponse `json:"teams,omitempty"`
}

type ActionResponse struct {
	ID           string               `json:"id"`
	Title        string               `json:"title"`
	AssignedTeam string               `json:"assigned_team"`
	Status       string               `json:"status"`
	Notes        string               `json:"notes"`
	Attachments  []AttachmentResponse `json:"attachments"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
	CompletedBy  string               `json:"completed_by,omitempty"`
}

type ReviewThreadResponse struct {
	Team      string             `json:"team"`
	Status    string             `json:"status"`
	Locked    bool               `json:"locked"`
	Decisions []DecisionResponse `json:"decisions"`
	Draft     DraftResponse      `json:"draft"`
}

type DecisionResponse struct {
	Status string    `json:"status"`
	Notes  *string   `json:"notes,omitempty"`
	Reply  *string   `json:"reply,omitempty"`
	At     time.Time `json:"at"`
	By     string    `json:"by"`
}

type DraftResponse struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
	Reply  string `json:"reply"`
}

type AuditEventResponse struct {
	ID      string         `json:"id"`
	Type    string         `json:"type" enum:"action_completed,attachment_added,review_decision"`
	At      time.Time      `json:"at"`
	By      string         `json:"by"`
	Summary string         `json:"summary"`
	Payload map[string]any `json:"payload" jsonschema:"type=object,additionalProperties=true"`
}

type AuditResponse struct {
	Items []AuditEventResponse `json:"items"`
}

func requestResponse(r domain.Request) RequestResponse {
	return RequestResponse{
		ID:           r.ID,
		Type:         string(r.Type),
		Name:         r.Name,
		Client:       r.Client,
		QuarterEnd:   r.QuarterEnd,
		QuarterLabel: domain.MonthLabel(r.QuarterEnd),
		RequestDate:  r.RequestDate,
		PeriodStart:  r.PeriodStart,
		PeriodEnd:    r.PeriodEnd,
		DueDate:      r.DueDate,
		Status:       string(r.Status),
		Products:     nonNilSlice(r.Products),
		Teams:        nonNilSlice(r.Teams),
		Notes:        r.Notes,
		Attachments:  attachmentResponses(r.Attachments),
	}
}

func mapRequests(in []domain.Request) []RequestResponse {
	out := make([]RequestResponse, 0, len(in))
	for _, r := range in {
		out = append(out, requestResponse(r))
	}
	return out
}

func attachmentResponses(in []domain.Attachment) []AttachmentResponse {
	out := make([]AttachmentResponse, 0, len(in))
	for _, a := range in {
		out = append(out, AttachmentResponse{Name: a.Name, Size: a.Size})
	}
	return out
}

func formValuesResponse(v intake.Values) FormValuesResponse {
	return FormValuesResponse{
		Type:        string(v.Type),
		Client:      v.Client,
		Products:    nonNilSlice(v.Products),
		Teams:       nonNilSlice(v.Teams),
		PeriodStart: v.PeriodStart,
		PeriodEnd:   v.PeriodEnd,
		RequestDate: v.RequestDate,
		DueDate:     v.DueDate,
		Notes:       v.Notes,
	}
}

// NewChecklistResponse renders a checklist snapshot. The CLI uses it for --json.
func NewChecklistResponse(v engine.ChecklistView) ChecklistResponse {
	res := ChecklistResponse{
		RequestID: v.RequestID,
		Progress: ProgressResponse{
			Completed: v.Progress.Completed,
			Total:     v.Progress.Total,
			Next:      v.Progress.Next,
			Done:      v.Progress.Done(),
		},
		Items: make([]ChecklistItemResponse, 0, len(v.Items)),
	}
	for _, it := range v.Items {
		item := ChecklistItemResponse{
			ID:           it.ItemID(),
			Title:        it.ItemTitle(),
			Type:         string(it.Kind()),
			DependsOn:    nonNilSlice(it.Dependencies()),
			Complete:     it.Complete(),
			Interactable: v.Interactable[it.ItemID()],
		}
		switch x := it.(type) {
		case *domain.ActionItem:
			a := actionResponse(*x)
			item.AssignedTeam = a.AssignedTeam
			item.Status = a.Status
			item.Notes = a.Notes
			item.Attachments = a.Attachments
			item.CompletedAt = a.CompletedAt
			item.CompletedBy = a.CompletedBy
		case *domain.ReviewItem:
			item.Teams = make([]ReviewThreadResponse, 0, len(x.Teams))
			for i := range x.Teams {
				item.Teams = append(item.Teams, threadResponse(&x.Teams[i]))
			}
		}
		res.Items = append(res.Items, item)
	}
	return res
}

func actionResponse(a domain.ActionItem) ActionResponse {
	return ActionResponse{
		ID:           a.ID,
		Title:        a.Title,
		AssignedTeam: a.AssignedTeam,
		Status:       string(a.Status),
		Notes:        a.Notes,
		Attachments:  attachmentResponses(a.Attachments),
		CompletedAt:  a.CompletedAt,
		CompletedBy:  a.CompletedBy,
	}
}

func threadResponse(t *domain.ReviewTeamThread) ReviewThreadResponse {
	res := ReviewThreadResponse{
		Team:      t.Team,
		Status:    string(t.EffectiveStatus()),
		Locked:    t.Locked(),
		Decisions: make([]DecisionResponse, 0, len(t.Decisions)),
		Draft:     draftResponse(t.Draft),
	}
	for _, d := range t.Decisions {
		res.Decisions = append(res.Decisions, decisionResponse(d))
	}
	return res
}

func decisionResponse(d domain.ReviewDecision) DecisionResponse {
	return DecisionResponse{Status: string(d.Status), Notes: d.Notes, Reply: d.Reply, At: d.At, By: d.By}
}

func draftResponse(d domain.ReviewDraft) DraftResponse {
	return DraftResponse{Status: string(d.Status), Notes: d.Notes, Reply: d.Reply}
}

// NewAuditEventResponse renders one audit event. The CLI uses it for --json.
func NewAuditEventResponse(evt audit.Event) AuditEventResponse {
	meta := evt.Header()
	return AuditEventResponse{
		ID:      meta.ID,
		Type:    string(evt.Kind()),
		At:      meta.At,
		By:      meta.By,
		Summary: events.Summary(evt),
		Payload: events.Payload(evt),
	}
}

func mapAuditEvents(in []audit.Event) []AuditEventResponse {
	out := make([]AuditEventResponse, 0, len(in))
	for _, evt := range in {
		out = append(out, NewAuditEventResponse(evt))
	}
	return out
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
