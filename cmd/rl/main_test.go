package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportline/internal/audit"
	"reportline/internal/checklist"
	"reportline/internal/domain"
	"reportline/internal/engine"
)

func TestParseFiles(t *testing.T) {
	files, err := parseFiles([]string{"pack.xlsx:2048", "cover.pdf", " notes.txt : 10 "})
	require.NoError(t, err)
	assert.Equal(t, []checklist.File{
		{Name: "pack.xlsx", Size: 2048},
		{Name: "cover.pdf"},
		{Name: "notes.txt", Size: 10},
	}, files)

	for _, bad := range []string{":12", "a.pdf:-1", "a.pdf:big"} {
		_, err := parseFiles([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestRenderChecklist(t *testing.T) {
	s, err := checklist.Initialize(domain.Request{
		ID:    "rg97-001",
		Type:  domain.TypeRG97,
		Teams: []string{"Fee Billing", "Fund Finance RE"},
	}, checklist.WithActor("tester"))
	require.NoError(t, err)
	_, err = s.AddAttachments("2", []checklist.File{{Name: "a.pdf", Size: 10}})
	require.NoError(t, err)

	snap := s.Snapshot()
	v := engine.ChecklistView{RequestID: "rg97-001", Items: snap.Items, Interactable: snap.Interactable, Progress: snap.Progress}
	var buf bytes.Buffer
	renderChecklist(&buf, v)
	out := buf.String()
	assert.Contains(t, out, "rg97-001  1/5 complete")
	assert.Contains(t, out, "Fee Billing: pending")
	assert.Contains(t, out, "0/2 approved")
	assert.Contains(t, out, "(1 files)")
	assert.Contains(t, out, "complete by system")
}

func TestRenderAudit(t *testing.T) {
	at := time.Date(2025, 7, 1, 10, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	renderAudit(&buf, []audit.Event{
		audit.AttachmentAdded{Meta: audit.Meta{ID: "e2", At: at, By: "user1"}, ActionID: "2", Files: []string{"a.pdf", "b.pdf"}},
		audit.ActionCompleted{Meta: audit.Meta{ID: "e1", At: at, By: "user1"}, ActionID: "2", Title: "Client communication"},
	})
	out := buf.String()
	assert.Contains(t, out, "Attached 2 files")
	assert.Contains(t, out, "Completed Client communication")
	assert.True(t, strings.Index(out, "Attached") < strings.Index(out, "Completed"), "rows keep newest-first order")
}

func TestRenderRequests(t *testing.T) {
	var buf bytes.Buffer
	renderRequests(&buf, []domain.Request{{ID: "rg97-001", Name: "Q4 FY25 RG97 Pack", Client: "Client 1", QuarterEnd: "2025-06-30", Status: domain.StatusOpen}})
	assert.Contains(t, buf.String(), "Jun-25")
	assert.Contains(t, buf.String(), "rg97-001")
}
