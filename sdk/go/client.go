package reportlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Reportline HTTP API client.
type Client struct {
	BaseURL    string
	BasePath   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Request represents the API request model.
type Request struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Name         string   `json:"name"`
	Client       string   `json:"client"`
	QuarterEnd   string   `json:"quarter_end"`
	QuarterLabel string   `json:"quarter_label"`
	RequestDate  string   `json:"request_date"`
	PeriodStart  string   `json:"period_start"`
	PeriodEnd    string   `json:"period_end"`
	DueDate      string   `json:"due_date"`
	Status       string   `json:"status"`
	Products     []string `json:"products"`
	Teams        []string `json:"teams"`
	Notes        string   `json:"notes,omitempty"`
}

// FormValues is the intake form, used both to read defaults and to create requests.
type FormValues struct {
	Type        string   `json:"type,omitempty"`
	Client      string   `json:"client"`
	Products    []string `json:"products"`
	Teams       []string `json:"teams"`
	PeriodStart string   `json:"period_start"`
	PeriodEnd   string   `json:"period_end"`
	RequestDate string   `json:"request_date"`
	DueDate     string   `json:"due_date"`
	Notes       string   `json:"notes,omitempty"`
}

// Filter narrows ListRequests. Empty fields are not sent.
type Filter struct {
	Client  string
	Quarter string
	Status  string
}

// Checklist represents a checklist snapshot (partial).
type Checklist struct {
	RequestID string `json:"request_id"`
	Progress  struct {
		Completed int    `json:"completed"`
		Total     int    `json:"total"`
		Next      string `json:"next"`
		Done      bool   `json:"done"`
	} `json:"progress"`
	Items []ChecklistItem `json:"items"`
}

// ChecklistItem flattens action and review steps; Type is "action" or "review".
type ChecklistItem struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Type         string         `json:"type"`
	DependsOn    []string       `json:"depends_on"`
	Complete     bool           `json:"complete"`
	Interactable bool           `json:"interactable"`
	AssignedTeam string         `json:"assigned_team,omitempty"`
	Status       string         `json:"status,omitempty"`
	Teams        []ReviewThread `json:"teams,omitempty"`
}

// ReviewThread is one team's decision history on a review step.
type ReviewThread struct {
	Team      string     `json:"team"`
	Status    string     `json:"status"`
	Locked    bool       `json:"locked"`
	Decisions []Decision `json:"decisions"`
}

// Decision is a confirmed review outcome.
type Decision struct {
	Status string    `json:"status"`
	Notes  *string   `json:"notes,omitempty"`
	Reply  *string   `json:"reply,omitempty"`
	At     time.Time `json:"at"`
	By     string    `json:"by"`
}

// Action is an action step after a mutation.
type Action struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Notes       string `json:"notes"`
	CompletedBy string `json:"completed_by,omitempty"`
	Attachments []struct {
		Name string `json:"name"`
		Size string `json:"size,omitempty"`
	} `json:"attachments"`
}

// File is attachment metadata sent to AddAttachments.
type File struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Event represents an audit entry.
type Event struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	At      time.Time      `json:"at"`
	By      string         `json:"by"`
	Summary string         `json:"summary"`
	Payload map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ListRequests lists requests of one report type.
func (c *Client) ListRequests(ctx context.Context, requestType string, f Filter) ([]Request, error) {
	q := url.Values{}
	q.Set("type", requestType)
	for k, v := range map[string]string{"client": f.Client, "quarter": f.Quarter, "status": f.Status} {
		if v != "" {
			q.Set(k, v)
		}
	}
	var resp struct {
		Items []Request `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "requests?"+q.Encode(), nil, &resp)
	return resp.Items, err
}

// GetRequest fetches a request by id.
func (c *Client) GetRequest(ctx context.Context, id string) (Request, error) {
	var resp Request
	err := c.do(ctx, http.MethodGet, "requests/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// FormDefaults returns the values of a blank intake form.
func (c *Client) FormDefaults(ctx context.Context) (FormValues, error) {
	var resp FormValues
	err := c.do(ctx, http.MethodGet, "intake/defaults", nil, &resp)
	return resp, err
}

// RollForward returns form values pre-populated from request id.
func (c *Client) RollForward(ctx context.Context, id string) (FormValues, error) {
	var resp FormValues
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("requests/%s/roll-forward", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// CreateRequest submits form values and returns the stored request.
func (c *Client) CreateRequest(ctx context.Context, v FormValues) (Request, error) {
	var resp Request
	err := c.do(ctx, http.MethodPost, "requests", v, &resp)
	return resp, err
}

// Checklist returns the checklist snapshot of a request.
func (c *Client) Checklist(ctx context.Context, requestID string) (Checklist, error) {
	var resp Checklist
	err := c.do(ctx, http.MethodGet, c.checklistPath(requestID, ""), nil, &resp)
	return resp, err
}

// CompleteAction marks an action step complete.
func (c *Client) CompleteAction(ctx context.Context, requestID, itemID string) (Action, error) {
	var resp Action
	err := c.do(ctx, http.MethodPost, c.checklistPath(requestID, "actions/"+url.PathEscape(itemID)+"/complete"), nil, &resp)
	return resp, err
}

// AddAttachments records file metadata against an action step.
func (c *Client) AddAttachments(ctx context.Context, requestID, itemID string, files []File) (Action, error) {
	body := map[string]any{"files": files}
	var resp Action
	err := c.do(ctx, http.MethodPost, c.checklistPath(requestID, "actions/"+url.PathEscape(itemID)+"/attachments"), body, &resp)
	return resp, err
}

// SetActionNotes replaces the notes of an action step.
func (c *Client) SetActionNotes(ctx context.Context, requestID, itemID, notes string) (Action, error) {
	body := map[string]any{"notes": notes}
	var resp Action
	err := c.do(ctx, http.MethodPut, c.checklistPath(requestID, "actions/"+url.PathEscape(itemID)+"/notes"), body, &resp)
	return resp, err
}

// Decide drafts status (plus optional notes and reply) for team and confirms it.
func (c *Client) Decide(ctx context.Context, requestID, itemID, team, status string, notes, reply *string) (Decision, error) {
	draft := map[string]any{"team": team, "status": status}
	if notes != nil {
		draft["notes"] = *notes
	}
	if reply != nil {
		draft["reply"] = *reply
	}
	review := "reviews/" + url.PathEscape(itemID)
	if err := c.do(ctx, http.MethodPatch, c.checklistPath(requestID, review+"/draft"), draft, nil); err != nil {
		return Decision{}, err
	}
	var resp Decision
	err := c.do(ctx, http.MethodPost, c.checklistPath(requestID, review+"/confirm"), map[string]any{"team": team}, &resp)
	return resp, err
}

// Audit returns a request's audit events, newest first.
func (c *Client) Audit(ctx context.Context, requestID string) ([]Event, error) {
	var resp struct {
		Items []Event `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("requests/%s/audit", url.PathEscape(requestID)), nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) checklistPath(requestID, p string) string {
	base := fmt.Sprintf("requests/%s/checklist", url.PathEscape(requestID))
	if p == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(p, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.BasePath, "/")
}
