package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"reportline/internal/audit"
	"reportline/internal/domain"
	"reportline/internal/engine"
	"reportline/internal/events"
	"reportline/internal/intake"
)

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	return tw
}

func renderDashboard(w io.Writer, tiles []engine.TypeCount) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Type", "Open"})
	for _, t := range tiles {
		tw.AppendRow(table.Row{t.Type, t.Open})
	}
	tw.Render()
}

func renderRequests(w io.Writer, items []domain.Request) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"ID", "Name", "Client", "Quarter", "Due", "Status"})
	for _, r := range items {
		tw.AppendRow(table.Row{r.ID, r.Name, r.Client, domain.MonthLabel(r.QuarterEnd), r.DueDate, r.Status})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "Total", len(items)})
	tw.Render()
}

func renderRequest(w io.Writer, r domain.Request) {
	tw := newTable(w)
	tw.AppendRows([]table.Row{
		{"ID", r.ID},
		{"Type", r.Type},
		{"Name", r.Name},
		{"Client", r.Client},
		{"Quarter end", fmt.Sprintf("%s (%s)", r.QuarterEnd, domain.MonthLabel(r.QuarterEnd))},
		{"Period", r.PeriodStart + " to " + r.PeriodEnd},
		{"Requested", r.RequestDate},
		{"Due", r.DueDate},
		{"Status", r.Status},
		{"Products", strings.Join(r.Products, ", ")},
		{"Teams", strings.Join(r.Teams, ", ")},
	})
	if r.Notes != "" {
		tw.AppendRow(table.Row{"Notes", r.Notes})
	}
	for _, a := range r.Attachments {
		tw.AppendRow(table.Row{"Attachment", attachmentLabel(a)})
	}
	tw.Render()
}

func renderForm(w io.Writer, v intake.Values) {
	typ := v.Type
	if typ == "" {
		typ = domain.TypeRG97
	}
	tw := newTable(w)
	tw.AppendRows([]table.Row{
		{"Type", typ},
		{"Client", v.Client},
		{"Products", strings.Join(v.Products, ", ")},
		{"Teams", strings.Join(v.Teams, ", ")},
		{"Period", v.PeriodStart + " to " + v.PeriodEnd},
		{"Requested", v.RequestDate},
		{"Due", v.DueDate},
		{"Notes", v.Notes},
	})
	tw.Render()
}

func renderChecklist(w io.Writer, v engine.ChecklistView) {
	tw := newTable(w)
	tw.SetTitle("%s  %d/%d complete", v.RequestID, v.Progress.Completed, v.Progress.Total)
	tw.AppendHeader(table.Row{"#", "Step", "Team", "Status", "Ready"})
	for _, it := range v.Items {
		team, status := itemColumns(it)
		ready := ""
		if !it.Complete() && v.Interactable[it.ItemID()] {
			ready = "yes"
		}
		tw.AppendRow(table.Row{it.ItemID(), it.ItemTitle(), team, status, ready})
	}
	if v.Progress.Next != "" {
		tw.AppendFooter(table.Row{"", "", "", "Next", v.Progress.Next})
	}
	tw.Render()
}

func itemColumns(it domain.ChecklistItem) (string, string) {
	switch x := it.(type) {
	case *domain.ActionItem:
		status := string(x.Status)
		if x.CompletedBy != "" {
			status += " by " + x.CompletedBy
		}
		if n := len(x.Attachments); n > 0 {
			status += fmt.Sprintf(" (%d files)", n)
		}
		return x.AssignedTeam, status
	case *domain.ReviewItem:
		teams := make([]string, 0, len(x.Teams))
		approved := 0
		for i := range x.Teams {
			st := x.Teams[i].EffectiveStatus()
			if st == domain.DraftApproved {
				approved++
			}
			teams = append(teams, fmt.Sprintf("%s: %s", x.Teams[i].Team, st))
		}
		return strings.Join(teams, "\n"), fmt.Sprintf("%d/%d approved", approved, len(x.Teams))
	default:
		return "", ""
	}
}

func renderAudit(w io.Writer, evts []audit.Event) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"When", "By", "Event"})
	for _, evt := range evts {
		meta := evt.Header()
		tw.AppendRow(table.Row{meta.At.Format("2006-01-02 15:04"), meta.By, events.Summary(evt)})
	}
	tw.Render()
}

func attachmentLabel(a domain.Attachment) string {
	if a.Size == "" {
		return a.Name
	}
	return fmt.Sprintf("%s (%s)", a.Name, a.Size)
}
