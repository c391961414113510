package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used for every request date.
const DateLayout = "2006-01-02"

// AllFilter bypasses a filter dimension.
const AllFilter = "All"

type RequestType string

const (
	TypeRG97    RequestType = "RG97"
	TypeTER     RequestType = "TER"
	TypeMySuper RequestType = "MySuper"
)

// RequestTypes lists the report families in display order.
var RequestTypes = []RequestType{TypeRG97, TypeTER, TypeMySuper}

func ParseRequestType(s string) (RequestType, error) {
	for _, t := range RequestTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid request type %q", s)
}

type RequestStatus string

const (
	StatusOpen       RequestStatus = "Open"
	StatusInProgress RequestStatus = "In Progress"
	StatusClosed     RequestStatus = "Closed"
)

func ParseRequestStatus(s string) (RequestStatus, error) {
	switch RequestStatus(s) {
	case StatusOpen, StatusInProgress, StatusClosed:
		return RequestStatus(s), nil
	}
	return "", fmt.Errorf("invalid request status %q", s)
}

// Attachment is file metadata only; content is never stored.
type Attachment struct {
	Name string `json:"name" yaml:"name"`
	Size string `json:"size,omitempty" yaml:"size,omitempty"`
}

// Request is one reporting obligation instance. Status is tracked
// independently of any checklist progress.
type Request struct {
	ID          string        `json:"id" yaml:"id"`
	Type        RequestType   `json:"type" yaml:"type"`
	Name        string        `json:"name" yaml:"name"`
	Client      string        `json:"client" yaml:"client"`
	QuarterEnd  string        `json:"quarter_end" yaml:"quarter_end"`
	RequestDate string        `json:"request_date" yaml:"request_date"`
	PeriodStart string        `json:"period_start" yaml:"period_start"`
	PeriodEnd   string        `json:"period_end" yaml:"period_end"`
	DueDate     string        `json:"due_date" yaml:"due_date"`
	Status      RequestStatus `json:"status" yaml:"status"`
	Products    []string      `json:"products" yaml:"products"`
	Teams       []string      `json:"teams" yaml:"teams"`
	Notes       string        `json:"notes,omitempty" yaml:"notes,omitempty"`
	Attachments []Attachment  `json:"attachments,omitempty" yaml:"attachments,omitempty"`
}

// Filter narrows a request listing. Empty or "All" values match everything.
type Filter struct {
	Client  string
	Quarter string
	Status  string
}

func (f Filter) Match(r Request) bool {
	if !bypass(f.Client) && r.Client != f.Client {
		return false
	}
	if !bypass(f.Quarter) && r.QuarterEnd != f.Quarter {
		return false
	}
	if !bypass(f.Status) && string(r.Status) != f.Status {
		return false
	}
	return true
}

// Apply returns the matching requests in input order. The input is not modified.
func (f Filter) Apply(in []Request) []Request {
	out := make([]Request, 0, len(in))
	for _, r := range in {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func bypass(v string) bool {
	return v == "" || v == AllFilter
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// MonthLabel renders an ISO date as "Jun-25". Unparseable input is returned as is.
func MonthLabel(iso string) string {
	t, err := ParseDate(iso)
	if err != nil {
		return iso
	}
	return t.Format("Jan-06")
}
