package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"reportline/internal/catalog"
	"reportline/internal/checklist"
	"reportline/internal/domain"
	"reportline/internal/engine"
	"reportline/internal/intake"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Logger   *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"precondition_failed"`
	Message string         `json:"message" example:"precondition failed: dependencies not complete: action 3"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"reason\":\"blocked\"}"`
}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the reportline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	hcfg := huma.DefaultConfig("Reportline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerDashboard(group, cfg.Engine)
	registerRequests(group, cfg.Engine)
	registerIntake(group, cfg.Engine)
	registerChecklist(group, cfg.Engine)
	registerAudit(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case errors.Is(err, checklist.ErrNoTemplate):
		return newAPIError(http.StatusNotFound, "no_checklist", msg, nil)
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, checklist.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, checklist.ErrPreconditionFailed):
		return newAPIError(http.StatusConflict, "precondition_failed", msg, map[string]any{"reason": preconditionReason(err)})
	case errors.Is(err, catalog.ErrConflict):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case errors.Is(err, intake.ErrInvalidForm), errors.Is(err, catalog.ErrInvalid):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func preconditionReason(err error) string {
	switch {
	case errors.Is(err, checklist.ErrBlocked):
		return "blocked"
	case errors.Is(err, checklist.ErrAlreadyComplete):
		return "already_complete"
	case errors.Is(err, checklist.ErrLocked):
		return "locked"
	case errors.Is(err, checklist.ErrNoDecision):
		return "no_decision"
	case errors.Is(err, checklist.ErrNoFiles):
		return "no_files"
	default:
		return "precondition_failed"
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		doc  []byte
	)
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			doc, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Reportline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerDashboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard",
		Summary:     "Open requests per report type",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body DashboardResponse `json:"body"`
	}, error) {
		counts, err := e.Dashboard(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DashboardResponse `json:"body"`
		}{Body: DashboardResponse{Items: counts}}, nil
	})
}

func registerRequests(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-requests",
		Method:      http.MethodGet,
		Path:        "/requests",
		Summary:     "List requests of one type",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type    string `query:"type" default:"RG97" enum:"RG97,TER,MySuper"`
		Client  string `query:"client"`
		Quarter string `query:"quarter"`
		Status  string `query:"status"`
	}) (*struct {
		Body RequestListResponse `json:"body"`
	}, error) {
		typ, err := domain.ParseRequestType(input.Type)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": "type"})
		}
		items, err := e.ListRequests(ctx, typ, domain.Filter{
			Client:  input.Client,
			Quarter: input.Quarter,
			Status:  input.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		opts, err := e.FilterOptions(ctx, typ)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestListResponse `json:"body"`
		}{Body: RequestListResponse{Items: mapRequests(items), Filters: opts}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-request",
		Method:      http.MethodGet,
		Path:        "/requests/{id}",
		Summary:     "Get request",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		r, err := e.GetRequest(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: requestResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-request",
		Method:        http.MethodPost,
		Path:          "/requests",
		Summary:       "Create request",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body FormValuesRequest `json:"body"`
	}) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		r, err := e.CreateRequest(ctx, input.Body.values())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: requestResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "roll-forward-request",
		Method:      http.MethodGet,
		Path:        "/requests/{id}/roll-forward",
		Summary:     "Form values rolled forward from a request",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body FormValuesResponse `json:"body"`
	}, error) {
		v, err := e.RollForward(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body FormValuesResponse `json:"body"`
		}{Body: formValuesResponse(v)}, nil
	})
}

func registerIntake(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "intake-defaults",
		Method:      http.MethodGet,
		Path:        "/intake/defaults",
		Summary:     "Default values of a blank request form",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body FormValuesResponse `json:"body"`
	}, error) {
		return &struct {
			Body FormValuesResponse `json:"body"`
		}{Body: formValuesResponse(e.NewRequestForm())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "intake-suggestions",
		Method:      http.MethodGet,
		Path:        "/intake/suggestions",
		Summary:     "Suggested products and teams",
	}, func(ctx context.Context, input *struct {
		Client   string   `query:"client"`
		Products []string `query:"products"`
	}) (*struct {
		Body SuggestionsResponse `json:"body"`
	}, error) {
		products := input.Products
		if len(products) == 0 && input.Client != "" {
			products = e.Intake.SuggestProducts(input.Client)
		}
		return &struct {
			Body SuggestionsResponse `json:"body"`
		}{Body: SuggestionsResponse{
			Client:   input.Client,
			Products: nonNilSlice(products),
			Teams:    nonNilSlice(e.Intake.SuggestTeams(products)),
			AllTeams: nonNilSlice(e.Intake.AllTeams()),
		}}, nil
	})
}

type checklistPath struct {
	ID string `path:"id"`
}

type itemPath struct {
	ID     string `path:"id"`
	ItemID string `path:"item_id"`
}

func registerChecklist(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-checklist",
		Method:      http.MethodGet,
		Path:        "/requests/{id}/checklist",
		Summary:     "Checklist snapshot",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *checklistPath) (*struct {
		Body ChecklistResponse `json:"body"`
	}, error) {
		v, err := e.Checklist(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ChecklistResponse `json:"body"`
		}{Body: NewChecklistResponse(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-action",
		Method:      http.MethodPost,
		Path:        "/requests/{id}/checklist/actions/{item_id}/complete",
		Summary:     "Mark an action complete",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *itemPath) (*struct {
		Body ActionResponse `json:"body"`
	}, error) {
		a, err := e.CompleteAction(ctx, input.ID, input.ItemID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActionResponse `json:"body"`
		}{Body: actionResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-attachments",
		Method:      http.MethodPost,
		Path:        "/requests/{id}/checklist/actions/{item_id}/attachments",
		Summary:     "Attach file metadata to an action",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID     string                `path:"id"`
		ItemID string                `path:"item_id"`
		Body   AddAttachmentsRequest `json:"body"`
	}) (*struct {
		Body ActionResponse `json:"body"`
	}, error) {
		files := make([]checklist.File, 0, len(input.Body.Files))
		for _, f := range input.Body.Files {
			files = append(files, checklist.File{Name: f.Name, Size: f.Size})
		}
		a, err := e.AddAttachments(ctx, input.ID, input.ItemID, files)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActionResponse `json:"body"`
		}{Body: actionResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-action-notes",
		Method:      http.MethodPut,
		Path:        "/requests/{id}/checklist/actions/{item_id}/notes",
		Summary:     "Replace action notes",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID     string          `path:"id"`
		ItemID string          `path:"item_id"`
		Body   SetNotesRequest `json:"body"`
	}) (*struct {
		Body ActionResponse `json:"body"`
	}, error) {
		a, err := e.SetActionNotes(ctx, input.ID, input.ItemID, input.Body.Notes)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActionResponse `json:"body"`
		}{Body: actionResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-review-draft",
		Method:      http.MethodPatch,
		Path:        "/requests/{id}/checklist/reviews/{item_id}/draft",
		Summary:     "Edit one team's review draft",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID     string       `path:"id"`
		ItemID string       `path:"item_id"`
		Body   DraftRequest `json:"body"`
	}) (*struct {
		Body DraftResponse `json:"body"`
	}, error) {
		patch := domain.DraftPatch{Notes: input.Body.Notes, Reply: input.Body.Reply}
		if input.Body.Status != nil {
			st, ok := domain.ParseDraftStatus(*input.Body.Status)
			if !ok {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid draft status", map[string]any{"field": "status"})
			}
			patch.Status = &st
		}
		d, err := e.SetDraft(ctx, input.ID, input.ItemID, input.Body.Team, patch)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DraftResponse `json:"body"`
		}{Body: draftResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "confirm-review-decision",
		Method:      http.MethodPost,
		Path:        "/requests/{id}/checklist/reviews/{item_id}/confirm",
		Summary:     "Commit one team's draft as a decision",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID     string         `path:"id"`
		ItemID string         `path:"item_id"`
		Body   ConfirmRequest `json:"body"`
	}) (*struct {
		Body DecisionResponse `json:"body"`
	}, error) {
		d, err := e.ConfirmDecision(ctx, input.ID, input.ItemID, input.Body.Team)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DecisionResponse `json:"body"`
		}{Body: decisionResponse(d)}, nil
	})
}

func registerAudit(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-audit-events",
		Method:      http.MethodGet,
		Path:        "/requests/{id}/audit",
		Summary:     "Audit events, newest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *checklistPath) (*struct {
		Body AuditResponse `json:"body"`
	}, error) {
		evts, err := e.Audit(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AuditResponse `json:"body"`
		}{Body: AuditResponse{Items: mapAuditEvents(evts)}}, nil
	})
}
