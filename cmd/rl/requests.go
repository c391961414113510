package main

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"reportline/internal/domain"
	"reportline/internal/engine"
	"reportline/internal/intake"
)

func requestsCmd() *cobra.Command {
	req := &cobra.Command{
		Use:     "requests",
		Aliases: []string{"request", "req"},
		Short:   "Browse and create reporting requests",
	}
	req.AddCommand(requestsListCmd())
	req.AddCommand(requestsShowCmd())
	req.AddCommand(requestsNewCmd())
	req.AddCommand(requestsRollForwardCmd())
	return req
}

func requestsListCmd() *cobra.Command {
	var typ, client, quarter, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests of one type",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := domain.ParseRequestType(typ)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListRequests(ctx, t, domain.Filter{Client: client, Quarter: quarter, Status: status})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				renderRequests(os.Stdout, items)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", string(domain.TypeRG97), "report type (RG97, TER, MySuper)")
	cmd.Flags().StringVar(&client, "client", domain.AllFilter, "client filter")
	cmd.Flags().StringVar(&quarter, "quarter", domain.AllFilter, "quarter end filter (YYYY-MM-DD)")
	cmd.Flags().StringVar(&status, "status", domain.AllFilter, "status filter")
	return cmd
}

func requestsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.GetRequest(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(r)
				}
				renderRequest(os.Stdout, r)
				return nil
			})
		},
	}
}

type formFlags struct {
	typ         string
	client      string
	products    []string
	teams       []string
	periodStart string
	periodEnd   string
	requestDate string
	dueDate     string
	notes       string
}

func (f *formFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.typ, "type", "", "report type (default RG97)")
	cmd.Flags().StringVar(&f.client, "client", "", "client (resets products to the client's catalog and teams to the suggestion)")
	cmd.Flags().StringSliceVar(&f.products, "product", nil, "product (repeatable; replaces the selection, edited teams are kept)")
	cmd.Flags().StringSliceVar(&f.teams, "team", nil, "team (repeatable; replaces the team list)")
	cmd.Flags().StringVar(&f.periodStart, "period-start", "", "period start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.periodEnd, "period-end", "", "period end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.requestDate, "request-date", "", "request date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.dueDate, "due-date", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.notes, "notes", "", "notes")
}

// apply drives form with the flags that were set, in the order a user fills
// the intake form: client, products, teams, then the free fields. Teams keep
// following the products until they are edited, so a rolled-forward team list
// survives --product.
func (f *formFlags) apply(cmd *cobra.Command, form *intake.Form) (intake.Values, error) {
	changed := cmd.Flags().Changed
	if changed("client") {
		if err := form.SelectClient(f.client); err != nil {
			return intake.Values{}, err
		}
	}
	if changed("product") {
		for _, p := range form.Products() {
			form.ToggleProduct(p)
		}
		for _, p := range f.products {
			if !slices.Contains(form.Products(), p) {
				form.ToggleProduct(p)
			}
		}
	}
	if changed("team") {
		for _, team := range form.Teams() {
			if !slices.Contains(f.teams, team) {
				form.ToggleTeam(team)
			}
		}
		for _, team := range f.teams {
			if !slices.Contains(form.Teams(), team) {
				form.ToggleTeam(team)
			}
		}
	}
	if changed("period-start") {
		form.PeriodStart = f.periodStart
	}
	if changed("period-end") {
		form.PeriodEnd = f.periodEnd
	}
	if changed("request-date") {
		form.RequestDate = f.requestDate
	}
	if changed("due-date") {
		form.DueDate = f.dueDate
	}
	if changed("notes") {
		form.Notes = f.notes
	}
	v := form.Values()
	if changed("type") {
		v.Type = domain.RequestType(f.typ)
	}
	return v, nil
}

func requestsNewCmd() *cobra.Command {
	var flags formFlags
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a request from the intake form",
		Long:  "Starts from the intake defaults (first client, previous quarter, due in the configured window) and applies the flags that are set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := flags.apply(cmd, e.NewForm())
				if err != nil {
					return err
				}
				return createOrPreview(ctx, e, v, dryRun)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the form values without creating")
	return cmd
}

func requestsRollForwardCmd() *cobra.Command {
	var flags formFlags
	var create bool
	cmd := &cobra.Command{
		Use:   "roll-forward <id>",
		Short: "Pre-populate a new request from an existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				form, err := e.RollForwardForm(ctx, args[0])
				if err != nil {
					return err
				}
				v, err := flags.apply(cmd, form)
				if err != nil {
					return err
				}
				return createOrPreview(ctx, e, v, !create)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&create, "create", false, "create the request instead of printing the form")
	return cmd
}

func createOrPreview(ctx context.Context, e engine.Engine, v intake.Values, preview bool) error {
	if preview {
		if viper.GetBool("json") {
			return printJSON(v)
		}
		renderForm(os.Stdout, v)
		return nil
	}
	r, err := e.CreateRequest(ctx, v)
	if err != nil {
		return err
	}
	if viper.GetBool("json") {
		return printJSON(r)
	}
	fmt.Printf("created %s\n", r.ID)
	renderRequest(os.Stdout, r)
	return nil
}
