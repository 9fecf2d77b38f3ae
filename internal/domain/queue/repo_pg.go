package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rme/rme/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const ticketSelect = `
	SELECT qt.id, qt.tenant_id, qt.visit_id, qt.number, qt.state,
	       qt.created_at, qt.updated_at, p.full_name
	FROM queue_tickets qt
	JOIN visits v ON v.id = qt.visit_id
	JOIN patients p ON p.id = v.patient_id`

func (r *repoPG) AllocateAndCreate(ctx context.Context, tenantID, visitID uuid.UUID) (*Ticket, error) {
	conn := r.conn(ctx)

	// The upsert takes (or waits for) the tenant's counter row lock, so
	// concurrent admissions for one tenant serialize here and each sees a
	// distinct number. Other tenants hit other rows and never wait.
	var number int64
	err := conn.QueryRow(ctx, `
		INSERT INTO queue_ticket_sequences (tenant_id, next_number)
		VALUES ($1, 1)
		ON CONFLICT (tenant_id)
		DO UPDATE SET next_number = queue_ticket_sequences.next_number + 1
		RETURNING next_number`,
		tenantID,
	).Scan(&number)
	if err != nil {
		return nil, err
	}

	t := &Ticket{
		ID:       uuid.New(),
		TenantID: tenantID,
		VisitID:  visitID,
		Number:   number,
		State:    StateWaiting,
	}
	err = conn.QueryRow(ctx, `
		INSERT INTO queue_tickets (id, tenant_id, visit_id, number, state)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		t.ID, t.TenantID, t.VisitID, t.Number, t.State,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrConflict
		}
		return nil, err
	}
	return t, nil
}

func (r *repoPG) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Ticket, error) {
	return scanTicket(r.conn(ctx).QueryRow(ctx,
		ticketSelect+` WHERE qt.tenant_id = $1 AND qt.id = $2`, tenantID, id))
}

func (r *repoPG) ListActive(ctx context.Context, tenantID uuid.UUID) ([]*Ticket, error) {
	rows, err := r.conn(ctx).Query(ctx,
		ticketSelect+`
		WHERE qt.tenant_id = $1 AND qt.state IN ($2, $3)
		ORDER BY qt.created_at ASC, qt.number ASC`,
		tenantID, StateWaiting, StateInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Ticket
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(&t.ID, &t.TenantID, &t.VisitID, &t.Number, &t.State,
			&t.CreatedAt, &t.UpdatedAt, &t.PatientName); err != nil {
			return nil, err
		}
		result = append(result, &t)
	}
	return result, rows.Err()
}

func (r *repoPG) LockNextWaiting(ctx context.Context, tenantID uuid.UUID) (*Ticket, error) {
	// SKIP LOCKED makes concurrent callers pick distinct tickets instead of
	// queueing on the same row.
	t, err := scanTicket(r.conn(ctx).QueryRow(ctx,
		ticketSelect+`
		WHERE qt.tenant_id = $1 AND qt.state = $2
		ORDER BY qt.created_at ASC, qt.number ASC
		FOR UPDATE OF qt SKIP LOCKED
		LIMIT 1`,
		tenantID, StateWaiting))
	if errors.Is(err, ErrTicketNotFound) {
		return nil, ErrEmptyQueue
	}
	return t, err
}

func (r *repoPG) Transition(ctx context.Context, tenantID, id uuid.UUID, state string) (*Ticket, error) {
	// The state predicate makes the write a compare-and-swap: under READ
	// COMMITTED a second writer re-evaluates the predicate against the
	// committed row and touches zero rows instead of clobbering a terminal
	// state.
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE queue_tickets
		SET state = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND state = ANY($4)`,
		tenantID, id, state, TransitionsInto(state))
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		current, err := r.GetByID(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidState, current.State, state)
	}
	return r.GetByID(ctx, tenantID, id)
}

func scanTicket(row pgx.Row) (*Ticket, error) {
	var t Ticket
	err := row.Scan(&t.ID, &t.TenantID, &t.VisitID, &t.Number, &t.State,
		&t.CreatedAt, &t.UpdatedAt, &t.PatientName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}
