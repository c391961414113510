// Package events renders audit events as flat payloads and forwards them to
// the structured log.
package events

import (
	"strconv"

	"go.uber.org/zap"

	"reportline/internal/audit"
)

type EventPayload map[string]any

// Payload returns the kind-specific fields of evt. Absent notes or reply
// are left out rather than rendered as empty strings.
func Payload(evt audit.Event) EventPayload {
	switch e := evt.(type) {
	case audit.ActionCompleted:
		return EventPayload{"action_id": e.ActionID, "title": e.Title}
	case audit.AttachmentAdded:
		return EventPayload{"action_id": e.ActionID, "files": append([]string{}, e.Files...)}
	case audit.ReviewDecision:
		p := EventPayload{"review_id": e.ReviewID, "team": e.Team, "status": string(e.Status)}
		if e.Notes != nil {
			p["notes"] = *e.Notes
		}
		if e.Reply != nil {
			p["reply"] = *e.Reply
		}
		return p
	default:
		return EventPayload{}
	}
}

// Summary is a one-line human description of evt.
func Summary(evt audit.Event) string {
	switch e := evt.(type) {
	case audit.ActionCompleted:
		return "Completed " + e.Title
	case audit.AttachmentAdded:
		if len(e.Files) == 1 {
			return "Attached " + e.Files[0]
		}
		return "Attached " + strconv.Itoa(len(e.Files)) + " files"
	case audit.ReviewDecision:
		return e.Team + " " + string(e.Status)
	default:
		return string(evt.Kind())
	}
}

// Writer forwards committed audit events to a logger.
type Writer struct {
	Logger *zap.Logger
}

// Append logs evt for requestID. It matches the checklist observer signature.
func (w Writer) Append(requestID string, evt audit.Event) {
	if w.Logger == nil {
		return
	}
	meta := evt.Header()
	w.Logger.Info("audit event",
		zap.String("request_id", requestID),
		zap.String("event_id", meta.ID),
		zap.String("kind", string(evt.Kind())),
		zap.String("by", meta.By),
		zap.Time("at", meta.At),
		zap.Any("payload", Payload(evt)),
	)
}
