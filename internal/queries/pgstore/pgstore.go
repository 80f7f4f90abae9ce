// Package pgstore provides a PostgreSQL implementation of queries.Store and
// queries.AgentStore.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/yavyy/audience-query-system/internal/queries"
)

var tracer = otel.Tracer("github.com/yavyy/audience-query-system/internal/queries/pgstore")

//go:embed schema.sql
var schema string

// Store persists queries and agents in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const queryColumns = `id, subject, message, channel, customer_name, customer_email, customer_phone,
	category, priority, sentiment, tags, summary, suggested_response, reasoning,
	status, assigned_to, assigned_by, assigned_at,
	first_response_at, resolved_at, closed_at, response_minutes, resolution_minutes,
	is_escalated, is_spam, responses, internal_notes, created_at, updated_at`

// Get retrieves a query by id.
func (s *Store) Get(ctx context.Context, id string) (*queries.Query, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Get", "SELECT")
	defer span.End()

	sql := `SELECT ` + queryColumns + ` FROM support_queries WHERE id = $1`
	q, err := scanQueryRow(s.pool.QueryRow(ctx, sql, id))
	if err != nil {
		return nil, false, spanErr(span, err)
	}
	if q == nil {
		return nil, false, nil
	}
	return q, true, nil
}

// Create assigns id and timestamps and inserts the row.
func (s *Store) Create(ctx context.Context, q *queries.Query) (*queries.Query, error) {
	ctx, span := startSpan(ctx, "pgstore.Create", "INSERT")
	defer span.End()

	cp := q.Clone()
	if cp.ID == "" {
		cp.ID = ulid.Make().String()
	}
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now

	if err := s.write(ctx, cp, false); err != nil {
		return nil, spanErr(span, err)
	}
	return cp, nil
}

// Save replaces the stored row and bumps updated_at.
func (s *Store) Save(ctx context.Context, q *queries.Query) (*queries.Query, error) {
	ctx, span := startSpan(ctx, "pgstore.Save", "UPDATE")
	defer span.End()

	cp := q.Clone()
	cp.UpdatedAt = time.Now()

	if err := s.write(ctx, cp, true); err != nil {
		return nil, spanErr(span, err)
	}
	return cp, nil
}

// Delete removes a query row. Returns false for unknown ids.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Delete", "DELETE")
	defer span.End()

	tag, err := s.pool.Exec(ctx, `DELETE FROM support_queries WHERE id = $1`, id)
	if err != nil {
		return false, spanErr(span, fmt.Errorf("delete query: %w", err))
	}
	return tag.RowsAffected() > 0, nil
}

// Count returns the number of rows matching the filter.
func (s *Store) Count(ctx context.Context, f queries.Filter) (int, error) {
	ctx, span := startSpan(ctx, "pgstore.Count", "SELECT")
	defer span.End()

	where, args := buildWhere(f)
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM support_queries`+where, args...).Scan(&n); err != nil {
		return 0, spanErr(span, fmt.Errorf("count: %w", err))
	}
	return n, nil
}

// List returns one page of matching queries plus the unpaginated total.
func (s *Store) List(ctx context.Context, f queries.Filter, opts queries.ListOptions) (*queries.Page, error) {
	ctx, span := startSpan(ctx, "pgstore.List", "SELECT")
	defer span.End()

	opts = opts.Normalize()
	total, err := s.Count(ctx, f)
	if err != nil {
		return nil, spanErr(span, err)
	}

	where, args := buildWhere(f)
	sql := `SELECT ` + queryColumns + ` FROM support_queries` + where +
		orderBy(opts) +
		fmt.Sprintf(` LIMIT %d OFFSET %d`, opts.Limit, (opts.Page-1)*opts.Limit)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, spanErr(span, fmt.Errorf("list: %w", err))
	}
	defer rows.Close()

	var out []*queries.Query
	for rows.Next() {
		q, err := scanQueryRow(rows)
		if err != nil {
			return nil, spanErr(span, err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, spanErr(span, fmt.Errorf("iterate: %w", err))
	}

	return &queries.Page{Queries: out, Total: total, Page: opts.Page, Limit: opts.Limit}, nil
}

// Timings averages the derived minute metrics across rows that have them.
func (s *Store) Timings(ctx context.Context) (float64, float64, error) {
	ctx, span := startSpan(ctx, "pgstore.Timings", "SELECT")
	defer span.End()

	var avgResp, avgRes *float64
	err := s.pool.QueryRow(ctx,
		`SELECT avg(response_minutes), avg(resolution_minutes) FROM support_queries`,
	).Scan(&avgResp, &avgRes)
	if err != nil {
		return 0, 0, spanErr(span, fmt.Errorf("timings: %w", err))
	}

	var r1, r2 float64
	if avgResp != nil {
		r1 = *avgResp
	}
	if avgRes != nil {
		r2 = *avgRes
	}
	return r1, r2, nil
}

// GetAgent retrieves an operator by id.
func (s *Store) GetAgent(ctx context.Context, id string) (*queries.Agent, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.GetAgent", "SELECT")
	defer span.End()

	var a queries.Agent
	var role string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, role, department, is_active, created_at FROM agents WHERE id = $1`, id,
	).Scan(&a.ID, &a.Name, &a.Email, &role, &a.Department, &a.IsActive, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, spanErr(span, fmt.Errorf("get agent: %w", err))
	}
	a.Role = queries.Role(role)
	return &a, true, nil
}

// PutAgent upserts an operator, assigning an id when empty.
func (s *Store) PutAgent(ctx context.Context, a *queries.Agent) (*queries.Agent, error) {
	ctx, span := startSpan(ctx, "pgstore.PutAgent", "UPSERT")
	defer span.End()

	cp := *a
	if cp.ID == "" {
		cp.ID = ulid.Make().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO agents (id, name, email, role, department, is_active, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, email = EXCLUDED.email, role = EXCLUDED.role,
			department = EXCLUDED.department, is_active = EXCLUDED.is_active`,
		cp.ID, cp.Name, cp.Email, string(cp.Role), cp.Department, cp.IsActive, cp.CreatedAt,
	)
	if err != nil {
		return nil, spanErr(span, fmt.Errorf("put agent: %w", err))
	}
	return &cp, nil
}

func (s *Store) write(ctx context.Context, q *queries.Query, update bool) error {
	tagsJSON, err := json.Marshal(sliceOrEmpty(q.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	respJSON, err := json.Marshal(respOrEmpty(q.Responses))
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}
	notesJSON, err := json.Marshal(notesOrEmpty(q.InternalNotes))
	if err != nil {
		return fmt.Errorf("marshal notes: %w", err)
	}

	sql := `INSERT INTO support_queries (` + queryColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29)`
	if update {
		sql += ` ON CONFLICT (id) DO UPDATE SET
		category = EXCLUDED.category,
		priority = EXCLUDED.priority,
		sentiment = EXCLUDED.sentiment,
		tags = EXCLUDED.tags,
		summary = EXCLUDED.summary,
		suggested_response = EXCLUDED.suggested_response,
		reasoning = EXCLUDED.reasoning,
		status = EXCLUDED.status,
		assigned_to = EXCLUDED.assigned_to,
		assigned_by = EXCLUDED.assigned_by,
		assigned_at = EXCLUDED.assigned_at,
		first_response_at = EXCLUDED.first_response_at,
		resolved_at = EXCLUDED.resolved_at,
		closed_at = EXCLUDED.closed_at,
		response_minutes = EXCLUDED.response_minutes,
		resolution_minutes = EXCLUDED.resolution_minutes,
		is_escalated = EXCLUDED.is_escalated,
		is_spam = EXCLUDED.is_spam,
		responses = EXCLUDED.responses,
		internal_notes = EXCLUDED.internal_notes,
		updated_at = EXCLUDED.updated_at`
	}

	_, err = s.pool.Exec(ctx, sql,
		q.ID, q.Subject, q.Message, string(q.Channel), q.CustomerName, q.CustomerEmail, q.CustomerPhone,
		string(q.Category), string(q.Priority), string(q.Sentiment), tagsJSON, q.Summary, q.SuggestedResponse, q.Reasoning,
		string(q.Status), q.AssignedTo, q.AssignedBy, q.AssignedAt,
		q.FirstResponseAt, q.ResolvedAt, q.ClosedAt, q.ResponseTimeMinutes, q.ResolutionTimeMinutes,
		q.IsEscalated, q.IsSpam, respJSON, notesJSON, q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("write query: %w", err)
	}
	return nil
}

// buildWhere maps a Filter to a WHERE clause: equality filters ANDed,
// the search term ORed across the text fields with ILIKE.
func buildWhere(f queries.Filter) (string, []any) {
	var conds []string
	var args []any

	add := func(col string, v string) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if f.Status != "" {
		add("status", string(f.Status))
	}
	if f.Priority != "" {
		add("priority", string(f.Priority))
	}
	if f.Category != "" {
		add("category", string(f.Category))
	}
	if f.Channel != "" {
		add("channel", string(f.Channel))
	}
	if f.AssignedTo != "" {
		add("assigned_to", f.AssignedTo)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(subject ILIKE $%d OR message ILIKE $%d OR customer_name ILIKE $%d OR customer_email ILIKE $%d)",
			n, n, n, n))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderBy(opts queries.ListOptions) string {
	dir := "DESC"
	if opts.Ascending {
		dir = "ASC"
	}
	switch opts.SortBy {
	case queries.SortUpdatedAt:
		return " ORDER BY updated_at " + dir + ", id " + dir
	case queries.SortPriority:
		// enum rank, not lexicographic
		return ` ORDER BY CASE priority
			WHEN 'critical' THEN 3 WHEN 'high' THEN 2 WHEN 'medium' THEN 1 ELSE 0
		END ` + dir + ", id " + dir
	default:
		return " ORDER BY created_at " + dir + ", id " + dir
	}
}

// scanQueryRow scans one row into a Query. Returns (nil, nil) when no row is
// found.
func scanQueryRow(row pgx.Row) (*queries.Query, error) {
	var (
		q                               queries.Query
		channel, category               string
		priority, sentiment, status     string
		tagsJSON, respJSON, notesJSON   []byte
	)

	err := row.Scan(
		&q.ID, &q.Subject, &q.Message, &channel, &q.CustomerName, &q.CustomerEmail, &q.CustomerPhone,
		&category, &priority, &sentiment, &tagsJSON, &q.Summary, &q.SuggestedResponse, &q.Reasoning,
		&status, &q.AssignedTo, &q.AssignedBy, &q.AssignedAt,
		&q.FirstResponseAt, &q.ResolvedAt, &q.ClosedAt, &q.ResponseTimeMinutes, &q.ResolutionTimeMinutes,
		&q.IsEscalated, &q.IsSpam, &respJSON, &notesJSON, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	q.Channel = queries.Channel(channel)
	q.Category = queries.Category(category)
	q.Priority = queries.Priority(priority)
	q.Sentiment = queries.Sentiment(sentiment)
	q.Status = queries.Status(status)

	if err := json.Unmarshal(tagsJSON, &q.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := json.Unmarshal(respJSON, &q.Responses); err != nil {
		return nil, fmt.Errorf("unmarshal responses: %w", err)
	}
	if err := json.Unmarshal(notesJSON, &q.InternalNotes); err != nil {
		return nil, fmt.Errorf("unmarshal notes: %w", err)
	}
	if len(q.Tags) == 0 {
		q.Tags = nil
	}
	if len(q.Responses) == 0 {
		q.Responses = nil
	}
	if len(q.InternalNotes) == 0 {
		q.InternalNotes = nil
	}

	return &q, nil
}

func sliceOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func respOrEmpty(s []queries.Response) []queries.Response {
	if s == nil {
		return []queries.Response{}
	}
	return s
}

func notesOrEmpty(s []queries.InternalNote) []queries.InternalNote {
	if s == nil {
		return []queries.InternalNote{}
	}
	return s
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
