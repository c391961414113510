// Package audit holds the append-only event trail of a checklist session.
package audit

import (
	"sync"
	"time"

	"reportline/internal/domain"
)

type Kind string

const (
	KindActionCompleted Kind = "action_completed"
	KindAttachmentAdded Kind = "attachment_added"
	KindReviewDecision  Kind = "review_decision"
)

// Event is implemented by ActionCompleted, AttachmentAdded and ReviewDecision.
type Event interface {
	Kind() Kind
	Header() Meta
	sealed()
}

// Meta is shared by every event.
type Meta struct {
	ID string    `json:"id"`
	At time.Time `json:"at"`
	By string    `json:"by"`
}

type ActionCompleted struct {
	Meta
	ActionID string `json:"action_id"`
	Title    string `json:"title"`
}

func (ActionCompleted) Kind() Kind     { return KindActionCompleted }
func (e ActionCompleted) Header() Meta { return e.Meta }
func (ActionCompleted) sealed()        {}

type AttachmentAdded struct {
	Meta
	ActionID string   `json:"action_id"`
	Files    []string `json:"files"`
}

func (AttachmentAdded) Kind() Kind     { return KindAttachmentAdded }
func (e AttachmentAdded) Header() Meta { return e.Meta }
func (AttachmentAdded) sealed()        {}

type ReviewDecision struct {
	Meta
	ReviewID string                `json:"review_id"`
	Team     string                `json:"team"`
	Status   domain.DecisionStatus `json:"status"`
	Notes    *string               `json:"notes,omitempty"`
	Reply    *string               `json:"reply,omitempty"`
}

func (ReviewDecision) Kind() Kind     { return KindReviewDecision }
func (e ReviewDecision) Header() Meta { return e.Meta }
func (ReviewDecision) sealed()        {}

// Log is append-only. Events are stored in append order and read newest first.
type Log struct {
	mu     sync.RWMutex
	events []Event
}

func NewLog() *Log {
	return &Log{}
}

// Append records evt. There is no way to remove or rewrite an event.
func (l *Log) Append(evt Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, evt)
}

// Events returns a copy of the log, newest first.
func (l *Log) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	for i, evt := range l.events {
		out[len(l.events)-1-i] = copyEvent(evt)
	}
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

func copyEvent(evt Event) Event {
	switch e := evt.(type) {
	case AttachmentAdded:
		e.Files = append([]string(nil), e.Files...)
		return e
	case ReviewDecision:
		e.Notes = copyPtr(e.Notes)
		e.Reply = copyPtr(e.Reply)
		return e
	default:
		return evt
	}
}

func copyPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
