package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"reportline/internal/checklist"
	"reportline/internal/domain"
	"reportline/internal/engine"
	"reportline/internal/server"
)

func checklistCmd() *cobra.Command {
	cl := &cobra.Command{
		Use:   "checklist <id>",
		Short: "Show or work through a request's checklist",
		Long: `Without a subcommand, prints the checklist of a request.
Mutating subcommands apply their changes in order and then print the resulting checklist.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return showChecklist(ctx, e, args[0])
			})
		},
	}
	cl.AddCommand(checklistCompleteCmd())
	cl.AddCommand(checklistAttachCmd())
	cl.AddCommand(checklistNotesCmd())
	cl.AddCommand(checklistDecideCmd())
	cl.AddCommand(checklistAuditCmd())
	return cl
}

func showChecklist(ctx context.Context, e engine.Engine, requestID string) error {
	v, err := e.Checklist(ctx, requestID)
	if err != nil {
		return err
	}
	if viper.GetBool("json") {
		return printJSON(server.NewChecklistResponse(v))
	}
	renderChecklist(os.Stdout, v)
	return nil
}

func checklistCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id> <item>...",
		Short: "Mark actions complete, in order",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				for _, item := range args[1:] {
					if _, err := e.CompleteAction(ctx, args[0], item); err != nil {
						return fmt.Errorf("complete %s: %w", item, err)
					}
				}
				return showChecklist(ctx, e, args[0])
			})
		},
	}
}

func checklistAttachCmd() *cobra.Command {
	var fileArgs []string
	cmd := &cobra.Command{
		Use:   "attach <id> <item>",
		Short: "Record file metadata against an action",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := parseFiles(fileArgs)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.AddAttachments(ctx, args[0], args[1], files); err != nil {
					return err
				}
				return showChecklist(ctx, e, args[0])
			})
		},
	}
	cmd.Flags().StringArrayVar(&fileArgs, "file", nil, "file as name[:bytes] (repeatable)")
	return cmd
}

// parseFiles reads name[:bytes] flag values. A missing size records an empty file.
func parseFiles(fileArgs []string) ([]checklist.File, error) {
	files := make([]checklist.File, 0, len(fileArgs))
	for _, arg := range fileArgs {
		name, size, hasSize := strings.Cut(arg, ":")
		f := checklist.File{Name: strings.TrimSpace(name)}
		if f.Name == "" {
			return nil, fmt.Errorf("invalid --file %q: name required", arg)
		}
		if hasSize {
			n, err := strconv.ParseInt(strings.TrimSpace(size), 10, 64)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid --file %q: size must be a non-negative byte count", arg)
			}
			f.Size = n
		}
		files = append(files, f)
	}
	return files, nil
}

func checklistNotesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notes <id> <item> <text>",
		Short: "Replace the notes of an action",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.SetActionNotes(ctx, args[0], args[1], args[2]); err != nil {
					return err
				}
				return showChecklist(ctx, e, args[0])
			})
		},
	}
}

func checklistDecideCmd() *cobra.Command {
	var teams []string
	var status, notes, reply string
	cmd := &cobra.Command{
		Use:   "decide <id> <item>",
		Short: "Draft and confirm a review decision for one or more teams",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, ok := domain.ParseDraftStatus(status)
			if !ok || st == domain.DraftPending {
				return fmt.Errorf("invalid --status %q: want approved or rejected", status)
			}
			patch := domain.DraftPatch{Status: &st}
			if cmd.Flags().Changed("notes") {
				patch.Notes = &notes
			}
			if cmd.Flags().Changed("reply") {
				patch.Reply = &reply
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				for _, team := range teams {
					if _, err := e.SetDraft(ctx, args[0], args[1], team, patch); err != nil {
						return fmt.Errorf("%s: %w", team, err)
					}
					if _, err := e.ConfirmDecision(ctx, args[0], args[1], team); err != nil {
						return fmt.Errorf("%s: %w", team, err)
					}
				}
				return showChecklist(ctx, e, args[0])
			})
		},
	}
	cmd.Flags().StringArrayVar(&teams, "team", nil, "review team (repeatable)")
	cmd.Flags().StringVar(&status, "status", "approved", "approved or rejected")
	cmd.Flags().StringVar(&notes, "notes", "", "review notes")
	cmd.Flags().StringVar(&reply, "reply", "", "reply to the review")
	_ = cmd.MarkFlagRequired("team")
	return cmd
}

func checklistAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit <id>",
		Short: "Show the audit trail, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				evts, err := e.Audit(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					out := make([]server.AuditEventResponse, 0, len(evts))
					for _, evt := range evts {
						out = append(out, server.NewAuditEventResponse(evt))
					}
					return printJSON(out)
				}
				renderAudit(os.Stdout, evts)
				return nil
			})
		},
	}
}
