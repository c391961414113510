// Package engine is the use-case layer shared by the HTTP API and the CLI.
// It ties the request catalog, the checklist sessions and the intake helper
// together.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reportline/internal/audit"
	"reportline/internal/catalog"
	"reportline/internal/checklist"
	"reportline/internal/config"
	"reportline/internal/domain"
	"reportline/internal/events"
	"reportline/internal/intake"
)

type Engine struct {
	DB       *sql.DB
	Store    catalog.Store
	Sessions *checklist.Registry
	Intake   *intake.Assembler
	Events   events.Writer
	Config   *config.Config
	Logger   *zap.Logger
	Now      func() time.Time
}

// New wires an engine over an already migrated database. A nil cfg selects
// config.Default, a nil logger discards logs and a nil now uses time.Now.
func New(db *sql.DB, cfg *config.Config, logger *zap.Logger, now func() time.Time) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	e := Engine{
		DB:     db,
		Store:  catalog.Store{DB: db, Now: now},
		Intake: intake.NewAssembler(cfg.Catalog, cfg.Intake.DueInDays),
		Events: events.Writer{Logger: logger.Named("audit")},
		Config: cfg,
		Logger: logger,
		Now:    now,
	}
	opts := []checklist.Option{
		checklist.WithActor(cfg.Actor),
		checklist.WithSystemActor(cfg.Checklist.SystemActor),
		checklist.WithDefaultReviewTeams(cfg.Checklist.DefaultReviewTeams),
		checklist.WithClock(now),
		checklist.WithObserver(e.Events.Append),
	}
	if cfg.Checklist.SeedEvent {
		opts = append(opts, checklist.WithSeedEvent())
	}
	e.Sessions = checklist.NewRegistry(e.Store, logger.Named("checklist"), opts...)
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Seed loads the built-in sample requests, skipping ids already present.
func (e Engine) Seed(ctx context.Context) (int, error) {
	reqs, err := catalog.SeedRequests()
	if err != nil {
		return 0, err
	}
	n, err := e.Store.Seed(ctx, reqs)
	if err != nil {
		return n, err
	}
	e.Logger.Debug("catalog seeded", zap.Int("inserted", n))
	return n, nil
}

// TypeCount is one dashboard tile.
type TypeCount struct {
	Type domain.RequestType `json:"type"`
	Open int                `json:"open"`
}

// Dashboard counts the requests of each type that are not closed, in
// display order.
func (e Engine) Dashboard(ctx context.Context) ([]TypeCount, error) {
	counts, err := e.Store.OpenCounts(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]TypeCount, 0, len(domain.RequestTypes))
	for _, t := range domain.RequestTypes {
		res = append(res, TypeCount{Type: t, Open: counts[t]})
	}
	return res, nil
}

func (e Engine) ListRequests(ctx context.Context, typ domain.RequestType, filter domain.Filter) ([]domain.Request, error) {
	return e.Store.ListByType(ctx, typ, filter)
}

// FilterOptions are the values a listing can be narrowed by, without the
// All sentinel.
type FilterOptions struct {
	Clients  []string `json:"clients"`
	Quarters []string `json:"quarters"`
	Statuses []string `json:"statuses"`
}

func (e Engine) FilterOptions(ctx context.Context, typ domain.RequestType) (FilterOptions, error) {
	quarters, err := e.Store.Quarters(ctx, typ)
	if err != nil {
		return FilterOptions{}, err
	}
	statuses, err := e.Store.Statuses(ctx, typ)
	if err != nil {
		return FilterOptions{}, err
	}
	return FilterOptions{Clients: e.Intake.Clients(), Quarters: quarters, Statuses: statuses}, nil
}

func (e Engine) GetRequest(ctx context.Context, id string) (domain.Request, error) {
	return e.Store.FindByID(ctx, id)
}

// NewForm starts a blank intake form with the default values.
func (e Engine) NewForm() *intake.Form {
	return e.Intake.NewForm(e.now())
}

// NewRequestForm returns the default values of a blank request form.
func (e Engine) NewRequestForm() intake.Values {
	return e.NewForm().Values()
}

// RollForwardForm starts an intake form pre-populated from request id.
func (e Engine) RollForwardForm(ctx context.Context, id string) (*intake.Form, error) {
	src, err := e.Store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.Intake.RollForward(src, e.now()), nil
}

// RollForward returns form values pre-populated from request id.
func (e Engine) RollForward(ctx context.Context, id string) (intake.Values, error) {
	f, err := e.RollForwardForm(ctx, id)
	if err != nil {
		return intake.Values{}, err
	}
	return f.Values(), nil
}

// CreateRequest validates v, assigns the next id and stores the request.
func (e Engine) CreateRequest(ctx context.Context, v intake.Values) (domain.Request, error) {
	typ := v.Type
	if typ == "" {
		typ = domain.TypeRG97
	}
	id, err := e.Store.NextID(ctx, typ)
	if err != nil {
		return domain.Request{}, err
	}
	req, err := e.Intake.Build(v, id)
	if err != nil {
		return domain.Request{}, err
	}
	if err := e.Store.Insert(ctx, req); err != nil {
		return domain.Request{}, fmt.Errorf("insert %s: %w", id, err)
	}
	e.Logger.Info("request created", zap.String("request_id", id), zap.String("client", req.Client))
	return req, nil
}

// ChecklistView is a snapshot of one request's checklist.
type ChecklistView struct {
	RequestID    string
	Items        []domain.ChecklistItem
	Interactable map[string]bool
	Progress     checklist.Progress
}

func (e Engine) Checklist(ctx context.Context, requestID string) (ChecklistView, error) {
	s, err := e.Sessions.Session(ctx, requestID)
	if err != nil {
		return ChecklistView{}, err
	}
	return view(s), nil
}

func view(s *checklist.Session) ChecklistView {
	snap := s.Snapshot()
	return ChecklistView{
		RequestID:    s.RequestID(),
		Items:        snap.Items,
		Interactable: snap.Interactable,
		Progress:     snap.Progress,
	}
}

func (e Engine) CompleteAction(ctx context.Context, requestID, itemID string) (domain.ActionItem, error) {
	s, err := e.Sessions.Session(ctx, requestID)
	if err != nil {
		return domain.ActionItem{}, err
	}
	return s.MarkActionComplete(itemID)
}

func (e Engine) AddAttachments(ctx context.Context, requestID, itemID string, files []checklist.File) (domain.ActionItem, error) {
	s, err := e.Sessions.Session(ctx, requestID)
	if err != nil {
		return domain.ActionItem{}, err
	}
	return s.AddAttachments(itemID, files)
}

func (e Engine) SetActionNotes(ctx context.Context, requestID, itemID, notes string) (domain.ActionItem, error) {
	s, err := e.Sessions.Session(ctx, requestID)
	if err != nil {
		return domain.ActionItem{}, err
	}
	return s.SetActionNotes(itemID, notes)
}

func (e Engine) SetDraft(ctx context.Context, requestID, itemID, team string, patch domain.DraftPatch) (domain.ReviewDraft, error) {
	s, err := e.Sessions.Session(ctx, requestID)
	if err != nil {
		return domain.ReviewDraft{}, err
	}
	return s.SetDraft(itemID, team, patch)
}

func (e Engine) ConfirmDecision(ctx context.Context, requestID, itemID, team string) (domain.ReviewDecision, error) {
	s, err := e.Sessions.Session(ctx, requestID)
	if err != nil {
		return domain.ReviewDecision{}, err
	}
	return s.ConfirmTeamDecision(itemID, team)
}

// Audit returns the request's audit events, newest first.
func (e Engine) Audit(ctx context.Context, requestID string) ([]audit.Event, error) {
	s, err := e.Sessions.Session(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return s.Audit().Events(), nil
}
