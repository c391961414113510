// Package checklist runs the per-request workflow: dependency-gated actions,
// multi-team review gates, and the audit trail they feed.
package checklist

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reportline/internal/audit"
	"reportline/internal/domain"
)

const (
	DefaultActor       = "user1"
	DefaultSystemActor = "system"
)

// Session owns the checklist of one request and the audit log it writes to.
// All methods are safe for concurrent use; each mutation commits atomically.
type Session struct {
	mu        sync.Mutex
	requestID string
	items     []domain.ChecklistItem
	index     map[string]int
	log       *audit.Log

	actor       string
	systemActor string
	reviewTeams []string
	seedEvent   bool
	now         func() time.Time
	newID       func() string
	logger      *zap.Logger
	observers   []func(requestID string, evt audit.Event)
}

type Option func(*Session)

// WithActor sets who completes actions and records decisions.
func WithActor(actor string) Option {
	return func(s *Session) { s.actor = actor }
}

func WithSystemActor(actor string) Option {
	return func(s *Session) { s.systemActor = actor }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithIDs(newID func() string) Option {
	return func(s *Session) { s.newID = newID }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithDefaultReviewTeams replaces DefaultReviewTeams for requests without teams.
func WithDefaultReviewTeams(teams []string) Option {
	return func(s *Session) { s.reviewTeams = append([]string(nil), teams...) }
}

// WithObserver registers fn to be called with every event the session
// records, while the session lock is held. fn must not call back into the session.
func WithObserver(fn func(requestID string, evt audit.Event)) Option {
	return func(s *Session) { s.observers = append(s.observers, fn) }
}

// WithSeedEvent records the pre-completed first step in the audit log.
func WithSeedEvent() Option {
	return func(s *Session) { s.seedEvent = true }
}

func newSession(requestID string, opts []Option) *Session {
	s := &Session{
		requestID:   requestID,
		log:         audit.NewLog(),
		actor:       DefaultActor,
		systemActor: DefaultSystemActor,
		reviewTeams: DefaultReviewTeams,
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("request_id", requestID))
	return s
}

// Initialize builds the checklist for req from its type's template.
func Initialize(req domain.Request, opts ...Option) (*Session, error) {
	tmpl, ok := Templates[req.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTemplate, req.Type)
	}
	s := newSession(req.ID, opts)
	teams := dedupe(req.Teams)
	if len(teams) == 0 {
		teams = dedupe(s.reviewTeams)
	}
	now := s.now()
	if err := s.load(tmpl.Instantiate(teams, s.systemActor, now)); err != nil {
		return nil, err
	}
	if s.seedEvent {
		for _, st := range tmpl.Steps {
			if st.PreCompleted {
				s.record(audit.ActionCompleted{
					Meta:     audit.Meta{ID: s.newID(), At: now, By: s.systemActor},
					ActionID: st.ID,
					Title:    st.Title,
				})
			}
		}
	}
	s.logger.Debug("checklist initialized", zap.Int("items", len(s.items)), zap.Strings("review_teams", teams))
	return s, nil
}

// Build creates a session over a caller-supplied item set. The items are copied.
func Build(requestID string, items []domain.ChecklistItem, opts ...Option) (*Session, error) {
	s := newSession(requestID, opts)
	cp := make([]domain.ChecklistItem, len(items))
	for i, it := range items {
		cp[i] = domain.CloneItem(it)
	}
	if err := s.load(cp); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) load(items []domain.ChecklistItem) error {
	if err := ValidateGraph(items); err != nil {
		return err
	}
	s.items = items
	s.index = make(map[string]int, len(items))
	for i, it := range items {
		s.index[it.ItemID()] = i
	}
	return nil
}

func (s *Session) record(evt audit.Event) {
	s.log.Append(evt)
	for _, fn := range s.observers {
		fn(s.requestID, evt)
	}
}

func (s *Session) RequestID() string { return s.requestID }

func (s *Session) Actor() string { return s.actor }

func (s *Session) Audit() *audit.Log { return s.log }

// Items returns a deep copy of the checklist in template order.
func (s *Session) Items() []domain.ChecklistItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ChecklistItem, len(s.items))
	for i, it := range s.items {
		out[i] = domain.CloneItem(it)
	}
	return out
}

func (s *Session) Item(id string) (domain.ChecklistItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	return domain.CloneItem(it), nil
}

// IsComplete reports whether item is finished. It has no side effects.
func IsComplete(item domain.ChecklistItem) bool {
	return item.Complete()
}

func (s *Session) IsComplete(item domain.ChecklistItem) bool {
	return IsComplete(item)
}

// CanInteract reports whether every dependency of item is complete. Dependencies
// are resolved against the session's current state by id.
func (s *Session) CanInteract(item domain.ChecklistItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canInteract(item)
}

func (s *Session) canInteract(item domain.ChecklistItem) bool {
	for _, dep := range item.Dependencies() {
		d, ok := s.lookup(dep)
		if !ok || !d.Complete() {
			return false
		}
	}
	return true
}

// Progress summarises completion for display.
type Progress struct {
	Completed int
	Total     int
	// Next is the first incomplete item that can be worked on, if any.
	Next string
}

func (p Progress) Done() bool { return p.Total > 0 && p.Completed == p.Total }

func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress()
}

func (s *Session) progress() Progress {
	p := Progress{Total: len(s.items)}
	for _, it := range s.items {
		if it.Complete() {
			p.Completed++
			continue
		}
		if p.Next == "" && s.canInteract(it) {
			p.Next = it.ItemID()
		}
	}
	return p
}

// Snapshot is a consistent view of the checklist taken under one lock.
type Snapshot struct {
	Items []domain.ChecklistItem
	// Interactable is keyed by item id.
	Interactable map[string]bool
	Progress     Progress
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Items:        make([]domain.ChecklistItem, len(s.items)),
		Interactable: make(map[string]bool, len(s.items)),
		Progress:     s.progress(),
	}
	for i, it := range s.items {
		snap.Items[i] = domain.CloneItem(it)
		snap.Interactable[it.ItemID()] = s.canInteract(it)
	}
	return snap
}

func (s *Session) lookup(id string) (domain.ChecklistItem, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.items[i], true
}

// openAction resolves id to an action that is interactable and still pending.
func (s *Session) openAction(id string) (*domain.ActionItem, error) {
	it, ok := s.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: action %s", ErrNotFound, id)
	}
	a, ok := it.(*domain.ActionItem)
	if !ok {
		return nil, fmt.Errorf("%w: action %s", ErrNotFound, id)
	}
	if a.Complete() {
		return nil, fmt.Errorf("%w: action %s", ErrAlreadyComplete, id)
	}
	if !s.canInteract(a) {
		return nil, fmt.Errorf("%w: action %s", ErrBlocked, id)
	}
	return a, nil
}

func (s *Session) meta() audit.Meta {
	return audit.Meta{ID: s.newID(), At: s.now(), By: s.actor}
}

// MarkActionComplete moves a pending action to complete. Completion is terminal.
func (s *Session) MarkActionComplete(id string) (domain.ActionItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.openAction(id)
	if err != nil {
		s.logger.Debug("complete action refused", zap.String("item_id", id), zap.Error(err))
		return domain.ActionItem{}, err
	}
	m := s.meta()
	at := m.At
	a.Status = domain.ActionComplete
	a.CompletedAt = &at
	a.CompletedBy = m.By
	s.record(audit.ActionCompleted{Meta: m, ActionID: a.ID, Title: a.Title})
	s.logger.Info("action completed", zap.String("item_id", id), zap.String("actor", m.By))
	return *domain.CloneItem(a).(*domain.ActionItem), nil
}

// File describes an uploaded file; only its metadata is kept.
type File struct {
	Name string
	Size int64
}

// SizeLabel renders size rounded up to the nearest KB, or "" for empty files.
func SizeLabel(size int64) string {
	if size <= 0 {
		return ""
	}
	kb := size / 1024
	if size%1024 != 0 {
		kb++
	}
	return fmt.Sprintf("%d KB", kb)
}

// AddAttachments appends file metadata to a pending action. Names are not deduplicated.
func (s *Session) AddAttachments(id string, files []File) (domain.ActionItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.openAction(id)
	if err != nil {
		s.logger.Debug("add attachments refused", zap.String("item_id", id), zap.Error(err))
		return domain.ActionItem{}, err
	}
	if len(files) == 0 {
		return domain.ActionItem{}, fmt.Errorf("%w: action %s", ErrNoFiles, id)
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		a.Attachments = append(a.Attachments, domain.Attachment{Name: f.Name, Size: SizeLabel(f.Size)})
		names = append(names, f.Name)
	}
	s.record(audit.AttachmentAdded{Meta: s.meta(), ActionID: a.ID, Files: names})
	s.logger.Info("attachments added", zap.String("item_id", id), zap.Strings("files", names))
	return *domain.CloneItem(a).(*domain.ActionItem), nil
}

// SetActionNotes replaces the free-text notes of a pending action. Notes are
// working state, so no audit event is recorded.
func (s *Session) SetActionNotes(id, notes string) (domain.ActionItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.openAction(id)
	if err != nil {
		return domain.ActionItem{}, err
	}
	a.Notes = notes
	return *domain.CloneItem(a).(*domain.ActionItem), nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
