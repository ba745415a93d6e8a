package approvals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-ip/meridian/internal/authz/catalog"
)

const requestColumns = `id, action_type, requested_by, department, payload, status,
reviewed_by, reviewed_at, COALESCE(review_comments, ''), created_at`

// Repository provides PostgreSQL backed persistence for approval requests.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new pending request.
func (r *Repository) Create(ctx context.Context, req Request) (Request, error) {
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return Request{}, fmt.Errorf("approvals: marshal payload: %w", err)
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO approval_requests
(id, action_type, requested_by, department, payload, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+requestColumns,
		req.ID, req.ActionType, req.RequestedBy, string(req.Department), payload, string(StatusPending))
	created, err := scanRequest(row)
	if err != nil {
		return Request{}, fmt.Errorf("approvals: create: %w", err)
	}
	return created, nil
}

// Get fetches a request by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM approval_requests WHERE id = $1`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("approvals: get: %w", err)
	}
	return req, nil
}

// ListPending returns pending requests, optionally filtered by department.
func (r *Repository) ListPending(ctx context.Context, dept catalog.Department) ([]Request, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE status = 'PENDING'`
	args := []any{}
	if dept != "" {
		query += ` AND department = $1`
		args = append(args, string(dept))
	}
	query += ` ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("approvals: list pending: %w", err)
	}
	defer rows.Close()
	var requests []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("approvals: scan: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("approvals: list pending: %w", err)
	}
	return requests, nil
}

// Resolve moves a pending request to a terminal status. The PENDING check
// runs inside the update, so two racing reviewers cannot both win; the
// loser sees zero rows.
func (r *Repository) Resolve(ctx context.Context, id uuid.UUID, status Status, reviewerID int64, comments string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE approval_requests
SET status = $2, reviewed_by = $3, reviewed_at = NOW(), review_comments = $4
WHERE id = $1 AND status = 'PENDING'`,
		id, string(status), reviewerID, comments)
	if err != nil {
		return false, fmt.Errorf("approvals: resolve: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (Request, error) {
	var (
		req     Request
		dept    string
		status  string
		payload []byte
	)
	err := row.Scan(&req.ID, &req.ActionType, &req.RequestedBy, &dept, &payload, &status,
		&req.ReviewedBy, &req.ReviewedAt, &req.ReviewComments, &req.CreatedAt)
	if err != nil {
		return Request{}, err
	}
	req.Department = catalog.Department(dept)
	req.Status = Status(status)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req.Payload); err != nil {
			return Request{}, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return req, nil
}
