package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/josephgoksu/dayplan/internal/config"
	"github.com/josephgoksu/dayplan/internal/task"
	"golang.org/x/sync/errgroup"
)

// HostedStore implements Adapter on a hosted, multi-tenant PostgREST-style
// row API. The API offers no client-visible transactions: every call is an
// independent row-level request.
type HostedStore struct {
	baseURL     string
	apiKey      string
	table       string
	rpc         string
	concurrency int
	client      *http.Client
	position    positionSupport
	logger      *slog.Logger
	now         func() time.Time
}

// HostedOptions configures NewHostedStore.
type HostedOptions struct {
	URL     string // e.g. https://project.example.co/rest/v1
	APIKey  string
	Table   string
	Timeout time.Duration

	// ReorderConcurrency bounds in-flight row updates during a reorder.
	ReorderConcurrency int

	// ReorderFunction, when set, names a server-side function called as
	// POST /rpc/<name> {"p_user_id": text, "p_moves": [{"id","position"}]}
	// that applies the whole reorder in one transaction and returns the number
	// of updated rows. Empty keeps the row-by-row path.
	ReorderFunction string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// HostedError is the structured error body returned by the row API.
type HostedError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

func (e *HostedError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("hosted store: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("hosted store: status %d: %s: %s", e.Status, e.Code, e.Message)
}

// hostedRow is the wire shape of a task row.
type hostedRow struct {
	ID        int64         `json:"id"`
	UserID    string        `json:"user_id"`
	Date      string        `json:"date"`
	Time      *string       `json:"time"`
	Text      string        `json:"text"`
	Emoji     string        `json:"emoji"`
	Priority  task.Priority `json:"priority"`
	Tags      []string      `json:"tags"`
	Completed bool          `json:"completed"`
	Archived  bool          `json:"archived"`
	Position  *int64        `json:"position"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (r hostedRow) toTask() task.Task {
	t := task.Task{
		ID:        r.ID,
		UserID:    r.UserID,
		Date:      r.Date,
		Text:      r.Text,
		Emoji:     r.Emoji,
		Priority:  r.Priority,
		Tags:      r.Tags,
		Completed: r.Completed,
		Archived:  r.Archived,
		Position:  r.Position,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Time != nil {
		t.Time = *r.Time
		// Postgres time columns render as HH:MM:SS.
		if len(t.Time) > 5 {
			t.Time = t.Time[:5]
		}
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return t
}

// NewHostedStore validates options and builds the REST client.
func NewHostedStore(opts HostedOptions) (*HostedStore, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("hosted store url is required")
	}
	if _, err := url.Parse(opts.URL); err != nil {
		return nil, fmt.Errorf("parse hosted store url: %w", err)
	}
	if opts.Table == "" {
		opts.Table = config.DefaultHostedTable
	}
	if opts.ReorderConcurrency <= 0 {
		opts.ReorderConcurrency = config.DefaultReorderConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = config.DefaultHostedTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	s := &HostedStore{
		baseURL:     strings.TrimRight(opts.URL, "/"),
		apiKey:      opts.APIKey,
		table:       opts.Table,
		rpc:         opts.ReorderFunction,
		concurrency: opts.ReorderConcurrency,
		client:      client,
		logger:      opts.Logger,
		now:         time.Now,
	}
	s.position.logger = opts.Logger
	s.position.store = config.BackendHosted
	return s, nil
}

// Backend implements Adapter.
func (s *HostedStore) Backend() string { return config.BackendHosted }

// PositionSupport implements Adapter.
func (s *HostedStore) PositionSupport() Capability { return s.position.load() }

// Close releases idle connections.
func (s *HostedStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// do sends one request and decodes a JSON response into out (if non-nil).
func (s *HostedStore) do(ctx context.Context, method, path string, query url.Values, body any, prefer string, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := s.baseURL + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		herr := &HostedError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, herr); jsonErr != nil || herr.Message == "" {
			herr.Message = strings.TrimSpace(string(data))
		}
		return herr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func ownerFilter(userID string) url.Values {
	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	return q
}

func idList(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "in.(" + strings.Join(parts, ",") + ")"
}

// ListTasks implements Adapter.
func (s *HostedStore) ListTasks(ctx context.Context, userID, date string, includeArchived bool) ([]task.Task, error) {
	if !s.position.absent() {
		tasks, err := s.listTasks(ctx, userID, date, includeArchived, true)
		if err == nil {
			s.position.markSupported()
			return tasks, nil
		}
		if !isMissingPositionColumn(err) {
			return nil, err
		}
		s.position.markAbsent(err)
	}
	return s.listTasks(ctx, userID, date, includeArchived, false)
}

func (s *HostedStore) listTasks(ctx context.Context, userID, date string, includeArchived, withPosition bool) ([]task.Task, error) {
	q := ownerFilter(userID)
	q.Set("date", "eq."+date)
	if !includeArchived {
		q.Set("archived", "eq.false")
	}
	q.Set("select", "*")
	if withPosition {
		q.Set("order", "position.asc.nullslast,time.asc.nullslast,id.asc")
	} else {
		q.Set("order", "time.asc.nullslast,id.asc")
	}

	var rows []hostedRow
	if err := s.do(ctx, http.MethodGet, s.table, q, nil, "", &rows); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	tasks := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		t := r.toTask()
		if !withPosition {
			t.Position = nil
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// CreateTask implements Adapter. The append position is read and then written
// in two requests; two concurrent creates on the same day can share a
// position, which the id tie-breaker orders deterministically.
func (s *HostedStore) CreateTask(ctx context.Context, userID string, in task.NewTask) (*task.Task, error) {
	in.Normalize()
	now := s.now().UTC()

	row := map[string]any{
		"user_id":    userID,
		"date":       in.Date,
		"time":       nullString(in.Time),
		"text":       in.Text,
		"emoji":      in.Emoji,
		"priority":   in.Priority,
		"tags":       in.Tags,
		"completed":  in.Completed,
		"archived":   false,
		"created_at": now,
		"updated_at": now,
	}

	if !s.position.absent() {
		pos, err := s.appendPosition(ctx, userID, in)
		switch {
		case err == nil:
			row["position"] = pos
		case isMissingPositionColumn(err):
			s.position.markAbsent(err)
		default:
			return nil, err
		}
	}

	created, err := s.insert(ctx, row)
	if err != nil && row["position"] != nil && isMissingPositionColumn(err) {
		s.position.markAbsent(err)
		delete(row, "position")
		created, err = s.insert(ctx, row)
	}
	if err != nil {
		return nil, err
	}
	if _, ok := row["position"]; ok {
		s.position.markSupported()
	}
	return created, nil
}

func (s *HostedStore) appendPosition(ctx context.Context, userID string, in task.NewTask) (int64, error) {
	if in.Position != nil {
		return *in.Position, nil
	}
	q := ownerFilter(userID)
	q.Set("date", "eq."+in.Date)
	q.Set("archived", "eq.false")
	q.Set("position", "not.is.null")
	q.Set("select", "position")
	q.Set("order", "position.desc")
	q.Set("limit", "1")

	var rows []struct {
		Position *int64 `json:"position"`
	}
	if err := s.do(ctx, http.MethodGet, s.table, q, nil, "", &rows); err != nil {
		return 0, fmt.Errorf("read max position: %w", err)
	}
	if len(rows) == 0 || rows[0].Position == nil {
		return 0, nil
	}
	return *rows[0].Position + 1, nil
}

func (s *HostedStore) insert(ctx context.Context, row map[string]any) (*task.Task, error) {
	var rows []hostedRow
	if err := s.do(ctx, http.MethodPost, s.table, nil, row, "return=representation", &rows); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert task: empty response")
	}
	t := rows[0].toTask()
	if _, ok := row["position"]; !ok {
		t.Position = nil
	}
	return &t, nil
}

// mutate runs a PATCH or DELETE and counts the returned rows.
func (s *HostedStore) mutate(ctx context.Context, op, method string, q url.Values, body any) (int64, error) {
	q.Set("select", "id")
	var rows []struct {
		ID int64 `json:"id"`
	}
	if err := s.do(ctx, method, s.table, q, body, "return=representation", &rows); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int64(len(rows)), nil
}

// UpdateTask implements Adapter.
func (s *HostedStore) UpdateTask(ctx context.Context, userID string, id int64, p task.Patch) (int64, error) {
	body := map[string]any{}
	if p.Date != nil {
		body["date"] = *p.Date
	}
	if p.Time != nil {
		body["time"] = nullString(*p.Time)
	}
	if p.Text != nil {
		body["text"] = *p.Text
	}
	if p.Emoji != nil {
		body["emoji"] = *p.Emoji
	}
	if p.Priority != nil {
		body["priority"] = *p.Priority
	}
	if p.Tags != nil {
		tags := *p.Tags
		if tags == nil {
			tags = []string{}
		}
		body["tags"] = tags
	}
	if p.Completed != nil {
		body["completed"] = *p.Completed
	}
	if len(body) == 0 {
		return 0, task.ErrNoFieldsToUpdate
	}
	body["updated_at"] = s.now().UTC()

	q := ownerFilter(userID)
	q.Set("id", "eq."+strconv.FormatInt(id, 10))
	return s.mutate(ctx, "update task", http.MethodPatch, q, body)
}

// DeleteTask implements Adapter.
func (s *HostedStore) DeleteTask(ctx context.Context, userID string, id int64) (int64, error) {
	q := ownerFilter(userID)
	q.Set("id", "eq."+strconv.FormatInt(id, 10))
	return s.mutate(ctx, "delete task", http.MethodDelete, q, nil)
}

// ClearTasks implements Adapter.
func (s *HostedStore) ClearTasks(ctx context.Context, userID string) (int64, error) {
	return s.mutate(ctx, "clear tasks", http.MethodDelete, ownerFilter(userID), nil)
}

// ArchiveTasks implements Adapter.
func (s *HostedStore) ArchiveTasks(ctx context.Context, userID, date string) (int64, error) {
	q := ownerFilter(userID)
	q.Set("date", "eq."+date)
	q.Set("completed", "eq.true")
	q.Set("archived", "eq.false")
	return s.mutate(ctx, "archive tasks", http.MethodPatch, q, map[string]any{
		"archived":   true,
		"updated_at": s.now().UTC(),
	})
}

// UnarchiveTasks implements Adapter.
func (s *HostedStore) UnarchiveTasks(ctx context.Context, userID string, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := ownerFilter(userID)
	q.Set("archived", "eq.true")
	q.Set("id", idList(ids))
	return s.mutate(ctx, "unarchive tasks", http.MethodPatch, q, map[string]any{
		"archived":   false,
		"updated_at": s.now().UTC(),
	})
}

// ProbePosition implements Adapter.
func (s *HostedStore) ProbePosition(ctx context.Context, userID string) error {
	if s.position.absent() {
		return task.ErrPositionUnsupported
	}
	q := ownerFilter(userID)
	q.Set("id", "eq."+strconv.FormatInt(sentinelTaskID, 10))
	err := s.do(ctx, http.MethodPatch, s.table, q, map[string]any{"position": 0}, "return=minimal", nil)
	if err != nil {
		return s.position.observe(fmt.Errorf("probe position: %w", err))
	}
	s.position.markSupported()
	return nil
}

// ReorderTasks implements Adapter.
//
// Without a ReorderFunction the moves are sent as independent row updates.
// A failure stops scheduling further updates but does not undo the ones
// already applied; the returned count reflects what was written.
func (s *HostedStore) ReorderTasks(ctx context.Context, userID string, moves []task.Move) (int64, error) {
	if len(moves) == 0 {
		return 0, nil
	}
	if s.position.absent() {
		return 0, task.ErrPositionUnsupported
	}
	if s.rpc != "" {
		return s.reorderRPC(ctx, userID, moves)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	var updated atomic.Int64
	now := s.now().UTC()
	for _, m := range moves {
		g.Go(func() error {
			q := ownerFilter(userID)
			q.Set("id", "eq."+strconv.FormatInt(m.ID, 10))
			n, err := s.mutate(gctx, "set position", http.MethodPatch, q, map[string]any{
				"position":   m.Position,
				"updated_at": now,
			})
			if err != nil {
				return fmt.Errorf("task %d: %w", m.ID, err)
			}
			updated.Add(n)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return updated.Load(), s.position.observe(fmt.Errorf("reorder tasks: %w", err))
	}
	s.position.markSupported()
	return updated.Load(), nil
}

func (s *HostedStore) reorderRPC(ctx context.Context, userID string, moves []task.Move) (int64, error) {
	var updated int64
	err := s.do(ctx, http.MethodPost, "rpc/"+s.rpc, nil, map[string]any{
		"p_user_id": userID,
		"p_moves":   moves,
	}, "", &updated)
	if err != nil {
		return 0, s.position.observe(fmt.Errorf("reorder tasks: %w", err))
	}
	s.position.markSupported()
	return updated, nil
}

// HostedMigrationSQL returns the SQL an operator runs on the hosted database
// to add ordering support to table. The row API can't alter schemas itself.
// When fn is non-empty the statements also define the atomic reorder function.
func HostedMigrationSQL(table, fn string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `ALTER TABLE %[1]s ADD COLUMN IF NOT EXISTS position bigint;

UPDATE %[1]s t SET position = o.rn - 1
FROM (
  SELECT id, row_number() OVER (PARTITION BY user_id, date, archived ORDER BY time NULLS LAST, id) AS rn
  FROM %[1]s
) o
WHERE t.id = o.id AND t.position IS NULL;

CREATE INDEX IF NOT EXISTS idx_%[1]s_user_date_position ON %[1]s (user_id, date, archived, position);
`, table)

	if fn != "" {
		fmt.Fprintf(&sb, `
CREATE OR REPLACE FUNCTION %[2]s(p_user_id text, p_moves jsonb) RETURNS integer
LANGUAGE plpgsql AS $$
DECLARE n integer;
BEGIN
  UPDATE %[1]s t
  SET position = (m->>'position')::bigint, updated_at = now()
  FROM jsonb_array_elements(p_moves) m
  WHERE t.id = (m->>'id')::bigint AND t.user_id = p_user_id;
  GET DIAGNOSTICS n = ROW_COUNT;
  RETURN n;
END $$;
`, table, fn)
	}

	sb.WriteString("\nNOTIFY pgrst, 'reload schema';\n")
	return sb.String()
}
