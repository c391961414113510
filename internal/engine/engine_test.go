package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"reportline/internal/audit"
	"reportline/internal/catalog"
	"reportline/internal/checklist"
	"reportline/internal/config"
	"reportline/internal/db"
	"reportline/internal/domain"
	"reportline/internal/engine"
	"reportline/internal/intake"
	"reportline/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

var fixedNow = time.Date(2025, 11, 3, 9, 0, 0, 0, time.Local)

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Actor = "tester"
	eng := engine.New(conn, cfg, nil, func() time.Time { return fixedNow })
	if _, err := eng.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func TestDashboardCountsOpenRequests(t *testing.T) {
	env := newTestEnv(t)
	tiles, err := env.Engine.Dashboard(env.Ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	want := []engine.TypeCount{{Type: domain.TypeRG97, Open: 2}, {Type: domain.TypeTER, Open: 2}, {Type: domain.TypeMySuper, Open: 1}}
	if len(tiles) != len(want) {
		t.Fatalf("expected %d tiles, got %d", len(want), len(tiles))
	}
	for i := range want {
		if tiles[i] != want[i] {
			t.Fatalf("tile %d: expected %+v, got %+v", i, want[i], tiles[i])
		}
	}
}

func TestFilterOptions(t *testing.T) {
	env := newTestEnv(t)
	opts, err := env.Engine.FilterOptions(env.Ctx, domain.TypeRG97)
	if err != nil {
		t.Fatalf("filter options: %v", err)
	}
	if len(opts.Clients) != 5 || len(opts.Quarters) != 4 || len(opts.Statuses) != 3 {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestCreateRequestAssignsNextID(t *testing.T) {
	env := newTestEnv(t)
	v := env.Engine.NewRequestForm()
	req, err := env.Engine.CreateRequest(env.Ctx, v)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.ID != "rg97-009" {
		t.Fatalf("expected rg97-009, got %s", req.ID)
	}
	stored, err := env.Engine.GetRequest(env.Ctx, req.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Name != "Q1 FY26 RG97 Request" || stored.Status != domain.StatusOpen {
		t.Fatalf("unexpected stored request %+v", stored)
	}

	v.Client = "Nobody"
	if _, err := env.Engine.CreateRequest(env.Ctx, v); !errors.Is(err, intake.ErrInvalidForm) {
		t.Fatalf("expected invalid form, got %v", err)
	}
}

func TestRollForwardThenCreate(t *testing.T) {
	env := newTestEnv(t)
	v, err := env.Engine.RollForward(env.Ctx, "rg97-003")
	if err != nil {
		t.Fatalf("roll forward: %v", err)
	}
	if !strings.HasPrefix(v.Notes, "Rolled forward from rg97-003") {
		t.Fatalf("unexpected notes %q", v.Notes)
	}
	if v.RequestDate != "2025-11-03" || v.DueDate != "2025-11-17" {
		t.Fatalf("unexpected dates %s %s", v.RequestDate, v.DueDate)
	}
	req, err := env.Engine.CreateRequest(env.Ctx, v)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.Client != "Client 3" || len(req.Teams) != 3 {
		t.Fatalf("scope not carried: %+v", req)
	}

	if _, err := env.Engine.RollForward(env.Ctx, "rg97-404"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestChecklistWorkflowThroughEngine(t *testing.T) {
	env := newTestEnv(t)
	view, err := env.Engine.Checklist(env.Ctx, "rg97-001")
	if err != nil {
		t.Fatalf("checklist: %v", err)
	}
	if len(view.Items) != 5 || !view.Interactable["2"] || view.Interactable["3"] {
		t.Fatalf("unexpected initial view %+v", view.Interactable)
	}

	if _, err := env.Engine.AddAttachments(env.Ctx, "rg97-001", "2", []checklist.File{{Name: "letter.pdf", Size: 3000}}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if _, err := env.Engine.SetActionNotes(env.Ctx, "rg97-001", "2", "sent"); err != nil {
		t.Fatalf("notes: %v", err)
	}
	done, err := env.Engine.CompleteAction(env.Ctx, "rg97-001", "2")
	if err != nil {
		t.Fatalf("complete 2: %v", err)
	}
	if done.CompletedBy != "tester" {
		t.Fatalf("expected configured actor, got %s", done.CompletedBy)
	}
	if _, err := env.Engine.CompleteAction(env.Ctx, "rg97-001", "3"); err != nil {
		t.Fatalf("complete 3: %v", err)
	}

	approved := domain.DraftApproved
	for _, team := range []string{"Fund Finance GPC", "LMG Trading Team", "Fee Billing"} {
		if _, err := env.Engine.SetDraft(env.Ctx, "rg97-001", "4", team, domain.DraftPatch{Status: &approved}); err != nil {
			t.Fatalf("draft %s: %v", team, err)
		}
		if _, err := env.Engine.ConfirmDecision(env.Ctx, "rg97-001", "4", team); err != nil {
			t.Fatalf("confirm %s: %v", team, err)
		}
	}
	if _, err := env.Engine.CompleteAction(env.Ctx, "rg97-001", "5"); err != nil {
		t.Fatalf("complete 5: %v", err)
	}

	view, err = env.Engine.Checklist(env.Ctx, "rg97-001")
	if err != nil {
		t.Fatalf("checklist: %v", err)
	}
	if !view.Progress.Done() {
		t.Fatalf("expected finished checklist, got %+v", view.Progress)
	}
	evts, err := env.Engine.Audit(env.Ctx, "rg97-001")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(evts) != 7 {
		t.Fatalf("expected 7 events, got %d", len(evts))
	}
	if evts[0].Kind() != audit.KindActionCompleted || evts[len(evts)-1].Kind() != audit.KindAttachmentAdded {
		t.Fatalf("events not newest first: %s ... %s", evts[0].Kind(), evts[len(evts)-1].Kind())
	}

	req, err := env.Engine.GetRequest(env.Ctx, "rg97-001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if req.Status != domain.StatusOpen {
		t.Fatalf("request status must not follow checklist progress, got %s", req.Status)
	}
}

func TestChecklistErrors(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.Checklist(env.Ctx, "ter-004"); !errors.Is(err, checklist.ErrNoTemplate) {
		t.Fatalf("expected no template, got %v", err)
	}
	if _, err := env.Engine.Checklist(env.Ctx, "missing"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := env.Engine.CompleteAction(env.Ctx, "rg97-002", "3"); !errors.Is(err, checklist.ErrPreconditionFailed) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
	if _, err := env.Engine.ConfirmDecision(env.Ctx, "rg97-002", "4", "Nobody"); !errors.Is(err, checklist.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
