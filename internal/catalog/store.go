// Package catalog stores report requests in SQLite. Requests are immutable
// once inserted; there is no update or delete.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"reportline/internal/domain"
)

var (
	ErrNotFound = errors.New("request not found")
	ErrConflict = errors.New("request already exists")
	ErrInvalid  = errors.New("invalid request")
)

type Store struct {
	DB  *sql.DB
	Now func() time.Time
}

func (s Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

const requestColumns = `id,type,name,client,quarter_end,request_date,period_start,period_end,due_date,status,COALESCE(notes,'') AS notes`

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (domain.Request, error) {
	var r domain.Request
	err := row.Scan(&r.ID, &r.Type, &r.Name, &r.Client, &r.QuarterEnd, &r.RequestDate,
		&r.PeriodStart, &r.PeriodEnd, &r.DueDate, &r.Status, &r.Notes)
	r.Products = []string{}
	r.Teams = []string{}
	return r, err
}

// FindByID returns the request with id, or ErrNotFound.
func (s Store) FindByID(ctx context.Context, id string) (domain.Request, error) {
	r, err := scanRequest(s.DB.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Request{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return domain.Request{}, err
	}
	reqs := []domain.Request{r}
	if err := s.attachChildren(ctx, reqs); err != nil {
		return domain.Request{}, err
	}
	return reqs[0], nil
}

// ListByType returns the requests of one type that match filter, in insertion order.
func (s Store) ListByType(ctx context.Context, typ domain.RequestType, filter domain.Filter) ([]domain.Request, error) {
	all, err := s.list(ctx, `WHERE type=?`, typ)
	if err != nil {
		return nil, err
	}
	return filter.Apply(all), nil
}

func (s Store) list(ctx context.Context, where string, args ...any) ([]domain.Request, error) {
	res, err := s.scanRequests(ctx, `SELECT `+requestColumns+` FROM requests `+where+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, err
	}
	if err := s.attachChildren(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// scanRequests reads the base rows and closes the cursor before children are
// loaded; the in-memory database allows a single connection.
func (s Store) scanRequests(ctx context.Context, query string, args ...any) ([]domain.Request, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (s Store) attachChildren(ctx context.Context, reqs []domain.Request) error {
	if len(reqs) == 0 {
		return nil
	}
	index := make(map[string]int, len(reqs))
	ids := make([]any, len(reqs))
	for i, r := range reqs {
		index[r.ID] = i
		ids[i] = r.ID
	}
	err := s.eachChild(ctx, `SELECT request_id, product FROM request_products WHERE request_id IN (%s) ORDER BY request_id, position`, ids,
		func(rows *sql.Rows) error {
			var id, product string
			if err := rows.Scan(&id, &product); err != nil {
				return err
			}
			reqs[index[id]].Products = append(reqs[index[id]].Products, product)
			return nil
		})
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	err = s.eachChild(ctx, `SELECT request_id, team FROM request_teams WHERE request_id IN (%s) ORDER BY request_id, position`, ids,
		func(rows *sql.Rows) error {
			var id, team string
			if err := rows.Scan(&id, &team); err != nil {
				return err
			}
			reqs[index[id]].Teams = append(reqs[index[id]].Teams, team)
			return nil
		})
	if err != nil {
		return fmt.Errorf("load teams: %w", err)
	}
	err = s.eachChild(ctx, `SELECT request_id, name, COALESCE(size_label,'') FROM request_attachments WHERE request_id IN (%s) ORDER BY request_id, position`, ids,
		func(rows *sql.Rows) error {
			var (
				id string
				a  domain.Attachment
			)
			if err := rows.Scan(&id, &a.Name, &a.Size); err != nil {
				return err
			}
			reqs[index[id]].Attachments = append(reqs[index[id]].Attachments, a)
			return nil
		})
	if err != nil {
		return fmt.Errorf("load attachments: %w", err)
	}
	return nil
}

func (s Store) eachChild(ctx context.Context, query string, ids []any, scan func(*sql.Rows) error) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(query, placeholders), ids...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Quarters returns the distinct quarter-end dates of one type, ascending.
func (s Store) Quarters(ctx context.Context, typ domain.RequestType) ([]string, error) {
	return s.distinct(ctx, `SELECT DISTINCT quarter_end FROM requests WHERE type=? ORDER BY quarter_end`, typ)
}

// Statuses returns the statuses in use for one type, in first-seen order.
func (s Store) Statuses(ctx context.Context, typ domain.RequestType) ([]string, error) {
	return s.distinct(ctx, `SELECT status FROM requests WHERE type=? GROUP BY status ORDER BY MIN(rowid)`, typ)
}

func (s Store) distinct(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

// OpenCounts returns the number of requests per type whose status is not
// Closed. Every known type is present, zero included.
func (s Store) OpenCounts(ctx context.Context) (map[domain.RequestType]int, error) {
	counts := make(map[domain.RequestType]int, len(domain.RequestTypes))
	for _, t := range domain.RequestTypes {
		counts[t] = 0
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT type, COUNT(*) FROM requests WHERE status<>? GROUP BY type`, domain.StatusClosed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t domain.RequestType
			n int
		)
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

// NextID returns the id a new request of typ should get: the lower-cased type
// and one more than the highest numeric suffix in use across all types.
func (s Store) NextID(ctx context.Context, typ domain.RequestType) (string, error) {
	ids, err := s.distinct(ctx, `SELECT id FROM requests`)
	if err != nil {
		return "", err
	}
	highest := 0
	for _, id := range ids {
		idx := strings.LastIndex(id, "-")
		if idx < 0 {
			continue
		}
		n, err := strconv.Atoi(id[idx+1:])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s-%03d", strings.ToLower(string(typ)), highest+1), nil
}

// Insert stores a new request with its products, teams and attachment
// metadata. An existing id yields ErrConflict.
func (s Store) Insert(ctx context.Context, r domain.Request) error {
	if err := validate(r); err != nil {
		return err
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM requests WHERE id=?`, r.ID).Scan(&exists)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrConflict, r.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO requests(id,type,name,client,quarter_end,request_date,period_start,period_end,due_date,status,notes,created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.Type, r.Name, r.Client, r.QuarterEnd, r.RequestDate, r.PeriodStart, r.PeriodEnd, r.DueDate, r.Status,
		nullable(r.Notes), s.now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	for i, p := range r.Products {
		if _, err := tx.ExecContext(ctx, `INSERT INTO request_products(request_id,position,product) VALUES (?,?,?)`, r.ID, i, p); err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
	}
	for i, team := range r.Teams {
		if _, err := tx.ExecContext(ctx, `INSERT INTO request_teams(request_id,position,team) VALUES (?,?,?)`, r.ID, i, team); err != nil {
			return fmt.Errorf("insert team: %w", err)
		}
	}
	for i, a := range r.Attachments {
		if _, err := tx.ExecContext(ctx, `INSERT INTO request_attachments(request_id,position,name,size_label) VALUES (?,?,?,?)`, r.ID, i, a.Name, nullable(a.Size)); err != nil {
			return fmt.Errorf("insert attachment: %w", err)
		}
	}
	return tx.Commit()
}

func validate(r domain.Request) error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	if _, err := domain.ParseRequestType(string(r.Type)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := domain.ParseRequestStatus(string(r.Status)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	dates := []struct{ field, value string }{
		{"quarter_end", r.QuarterEnd},
		{"request_date", r.RequestDate},
		{"period_start", r.PeriodStart},
		{"period_end", r.PeriodEnd},
		{"due_date", r.DueDate},
	}
	for _, d := range dates {
		if _, err := domain.ParseDate(d.value); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, d.field, err)
		}
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
