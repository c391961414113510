package checklist_test

import (
	"fmt"
	"reflect"
	"testing"

	"pgregory.net/rapid"

	"reportline/internal/checklist"
	"reportline/internal/domain"
)

var (
	propItemIDs  = []string{"1", "2", "3", "4", "5", "6"}
	propTeams    = []string{"A", "B", "C"}
	propStatuses = []domain.DraftStatus{domain.DraftPending, domain.DraftApproved, domain.DraftRejected}
)

// runRandomOps drives a fresh RG97 session with a random operation sequence.
// check is called after every step with whether the step returned an error.
func runRandomOps(rt *rapid.T, check func(s *checklist.Session, before []domain.ChecklistItem, err error, audited bool)) *checklist.Session {
	n := rapid.IntRange(1, len(propTeams)).Draw(rt, "teams")
	s, err := checklist.Initialize(rg97Request(propTeams[:n]...), checklist.WithIDs(counterIDs()))
	if err != nil {
		rt.Fatalf("initialize: %v", err)
	}
	steps := rapid.IntRange(0, 60).Draw(rt, "steps")
	for i := 0; i < steps; i++ {
		before := s.Items()
		var (
			opErr   error
			audited bool
		)
		switch rapid.IntRange(0, 3).Draw(rt, fmt.Sprintf("op_%d", i)) {
		case 0:
			id := rapid.SampledFrom(propItemIDs).Draw(rt, fmt.Sprintf("complete_%d", i))
			_, opErr = s.MarkActionComplete(id)
			audited = true
		case 1:
			id := rapid.SampledFrom(propItemIDs).Draw(rt, fmt.Sprintf("attach_%d", i))
			count := rapid.IntRange(0, 3).Draw(rt, fmt.Sprintf("files_%d", i))
			files := make([]checklist.File, count)
			for j := range files {
				files[j] = checklist.File{Name: fmt.Sprintf("f%d.pdf", j), Size: int64(j * 700)}
			}
			_, opErr = s.AddAttachments(id, files)
			audited = true
		case 2:
			team := rapid.SampledFrom(propTeams).Draw(rt, fmt.Sprintf("draft_team_%d", i))
			st := rapid.SampledFrom(propStatuses).Draw(rt, fmt.Sprintf("draft_status_%d", i))
			_, opErr = s.SetDraft("4", team, domain.DraftPatch{Status: &st})
		case 3:
			team := rapid.SampledFrom(propTeams).Draw(rt, fmt.Sprintf("confirm_team_%d", i))
			_, opErr = s.ConfirmTeamDecision("4", team)
			audited = true
		}
		check(s, before, opErr, audited)
	}
	return s
}

func TestPropertyAuditCountsSuccessfulMutations(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		emitted := 0
		s := runRandomOps(rt, func(s *checklist.Session, before []domain.ChecklistItem, err error, audited bool) {
			if err == nil && audited {
				emitted++
			}
			if got := s.Audit().Len(); got != emitted {
				rt.Fatalf("audit log has %d events, want %d", got, emitted)
			}
		})
		events := s.Audit().Events()
		for i, evt := range events {
			want := fmt.Sprintf("evt-%03d", emitted-i)
			if evt.Header().ID != want {
				rt.Fatalf("event %d has id %s, want %s (newest first)", i, evt.Header().ID, want)
			}
		}
	})
}

func TestPropertyRefusedCallsChangeNothing(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		runRandomOps(rt, func(s *checklist.Session, before []domain.ChecklistItem, err error, _ bool) {
			if err == nil {
				return
			}
			if after := s.Items(); !reflect.DeepEqual(before, after) {
				rt.Fatalf("refused call (%v) changed state", err)
			}
		})
	})
}

func TestPropertyGatingAndConsensus(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		runRandomOps(rt, func(s *checklist.Session, _ []domain.ChecklistItem, _ error, _ bool) {
			items := s.Items()
			complete := map[string]bool{}
			for _, it := range items {
				complete[it.ItemID()] = it.Complete()
			}
			for _, it := range items {
				want := true
				for _, dep := range it.Dependencies() {
					want = want && complete[dep]
				}
				if got := s.CanInteract(it); got != want {
					rt.Fatalf("CanInteract(%s) = %v, want %v", it.ItemID(), got, want)
				}
				r, ok := it.(*domain.ReviewItem)
				if !ok {
					continue
				}
				allApproved := true
				for _, thr := range r.Teams {
					if len(thr.Decisions) == 0 || thr.Decisions[len(thr.Decisions)-1].Status != domain.DecisionApproved {
						allApproved = false
					}
					if thr.Draft.Status == domain.DraftPending && thr.Draft.Notes == "" && thr.Draft.Reply == "" {
						continue
					}
					if thr.Locked() {
						rt.Fatalf("approved thread %s has a non-empty draft", thr.Team)
					}
				}
				if r.Complete() != allApproved {
					rt.Fatalf("review complete = %v, want %v", r.Complete(), allApproved)
				}
			}
			if !complete["1"] {
				rt.Fatalf("first step must stay complete")
			}
		})
	})
}
