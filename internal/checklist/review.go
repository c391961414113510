package checklist

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"reportline/internal/audit"
	"reportline/internal/domain"
)

// openThread resolves the thread of team inside review itemID, provided the
// review is interactable and the thread has not been approved.
func (s *Session) openThread(itemID, team string) (*domain.ReviewTeamThread, error) {
	it, ok := s.lookup(itemID)
	if !ok {
		return nil, fmt.Errorf("%w: review %s", ErrNotFound, itemID)
	}
	r, ok := it.(*domain.ReviewItem)
	if !ok {
		return nil, fmt.Errorf("%w: review %s", ErrNotFound, itemID)
	}
	thr := r.Thread(team)
	if thr == nil {
		return nil, fmt.Errorf("%w: team %s in review %s", ErrNotFound, team, itemID)
	}
	if !s.canInteract(r) {
		return nil, fmt.Errorf("%w: review %s", ErrBlocked, itemID)
	}
	if thr.Locked() {
		return nil, fmt.Errorf("%w: team %s in review %s", ErrLocked, team, itemID)
	}
	return thr, nil
}

// SetDraft merges patch into one team's draft. Drafts are not history, so
// nothing is recorded in the audit log.
func (s *Session) SetDraft(itemID, team string, patch domain.DraftPatch) (domain.ReviewDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	thr, err := s.openThread(itemID, team)
	if err != nil {
		return domain.ReviewDraft{}, err
	}
	thr.Draft = thr.Draft.Merge(patch)
	return thr.Draft, nil
}

// ConfirmTeamDecision commits the team's draft as a new decision and resets
// the draft. A pending draft commits nothing. Other teams are unaffected.
func (s *Session) ConfirmTeamDecision(itemID, team string) (domain.ReviewDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	thr, err := s.openThread(itemID, team)
	if err != nil {
		s.logger.Debug("confirm decision refused", zap.String("item_id", itemID), zap.String("team", team), zap.Error(err))
		return domain.ReviewDecision{}, err
	}
	var status domain.DecisionStatus
	switch thr.Draft.Status {
	case domain.DraftApproved:
		status = domain.DecisionApproved
	case domain.DraftRejected:
		status = domain.DecisionRejected
	default:
		return domain.ReviewDecision{}, fmt.Errorf("%w: team %s in review %s", ErrNoDecision, team, itemID)
	}
	m := s.meta()
	dec := domain.ReviewDecision{
		Status: status,
		Notes:  optionalText(thr.Draft.Notes),
		Reply:  optionalText(thr.Draft.Reply),
		At:     m.At,
		By:     m.By,
	}
	thr.Decisions = append(thr.Decisions, dec)
	thr.Draft = domain.EmptyDraft()
	s.record(audit.ReviewDecision{
		Meta:     m,
		ReviewID: itemID,
		Team:     team,
		Status:   status,
		Notes:    copyText(dec.Notes),
		Reply:    copyText(dec.Reply),
	})
	s.logger.Info("review decision recorded",
		zap.String("item_id", itemID),
		zap.String("team", team),
		zap.String("status", string(status)),
		zap.Int("history", len(thr.Decisions)),
	)
	out := dec
	out.Notes, out.Reply = copyText(dec.Notes), copyText(dec.Reply)
	return out, nil
}

// optionalText trims v and stores blank text as absent.
func optionalText(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func copyText(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
