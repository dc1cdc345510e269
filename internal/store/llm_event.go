package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// eventRepo implements EventRepo over the llm_attempt_events table.
type eventRepo struct {
	db *sql.DB
}

const eventColumns = `id, created_at, call_id, provider, model, purpose, outcome,
	input_tokens, output_tokens, latency_ms, success, error_message,
	request_body, response_body`

func (r *eventRepo) AppendLLMAttempt(ctx context.Context, data LLMAttemptEventData) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO llm_attempt_events
		(created_at, call_id, provider, model, purpose, outcome,
		 input_tokens, output_tokens, latency_ms, success, error_message,
		 request_body, response_body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UnixMilli(),
		data.CallID,
		data.Provider,
		data.Model,
		data.Purpose,
		data.Outcome,
		data.InputTokens,
		data.OutputTokens,
		data.LatencyMs,
		data.Success,
		data.ErrorMessage,
		data.RequestBody,
		data.ResponseBody,
	)
	if err != nil {
		return fmt.Errorf("save LLM attempt event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMAttemptEvent, error) {
	var (
		where []string
		args  []any
	)
	if opts.Purpose != "" {
		where = append(where, "purpose = ?")
		args = append(args, opts.Purpose)
	}
	if opts.CallID != "" {
		where = append(where, "call_id = ?")
		args = append(args, opts.CallID)
	}
	if opts.Model != "" {
		where = append(where, "model = ?")
		args = append(args, opts.Model)
	}
	if !opts.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, opts.From.UnixMilli())
	}

	query := "SELECT " + eventColumns + " FROM llm_attempt_events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query LLM events: %w", err)
	}
	defer rows.Close()

	var events []LLMAttemptEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (r *eventRepo) GetLLMEvent(ctx context.Context, id int) (*LLMAttemptEvent, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM llm_attempt_events WHERE id = ?", id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (r *eventRepo) LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT purpose,
		COUNT(*),
		COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(input_tokens), 0),
		COALESCE(SUM(output_tokens), 0),
		CAST(COALESCE(AVG(latency_ms), 0) AS INTEGER)
		FROM llm_attempt_events
		GROUP BY purpose
		ORDER BY purpose`)
	if err != nil {
		return nil, fmt.Errorf("query usage by purpose: %w", err)
	}
	defer rows.Close()

	var out []PurposeUsage
	for rows.Next() {
		var u PurposeUsage
		if err := rows.Scan(&u.Purpose, &u.Calls, &u.Failures, &u.InputTokens, &u.OutputTokens, &u.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scan usage by purpose: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *eventRepo) LLMUsageByModel(ctx context.Context) ([]ModelUsage, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT model,
		COUNT(*),
		COALESCE(SUM(CASE WHEN outcome = 'rate_limited' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(input_tokens), 0),
		COALESCE(SUM(output_tokens), 0)
		FROM llm_attempt_events
		GROUP BY model
		ORDER BY model`)
	if err != nil {
		return nil, fmt.Errorf("query usage by model: %w", err)
	}
	defer rows.Close()

	var out []ModelUsage
	for rows.Next() {
		var u ModelUsage
		if err := rows.Scan(&u.Model, &u.Calls, &u.RateLimited, &u.InputTokens, &u.OutputTokens); err != nil {
			return nil, fmt.Errorf("scan usage by model: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*LLMAttemptEvent, error) {
	var (
		e         LLMAttemptEvent
		createdAt int64
	)
	err := row.Scan(
		&e.ID,
		&createdAt,
		&e.CallID,
		&e.Provider,
		&e.Model,
		&e.Purpose,
		&e.Outcome,
		&e.InputTokens,
		&e.OutputTokens,
		&e.LatencyMs,
		&e.Success,
		&e.ErrorMessage,
		&e.RequestBody,
		&e.ResponseBody,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan LLM event: %w", err)
	}
	e.Timestamp = time.UnixMilli(createdAt)
	return &e, nil
}
