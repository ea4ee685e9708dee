package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tiendatec/chat-platform/internal/conversation"
)

var (
	// ErrAgentNotFound is returned when the agent id matches no row.
	ErrAgentNotFound = errors.New("agents: agent not found")
	// ErrNotWaiting is returned when assignment targets a conversation that
	// is not in the waiting queue.
	ErrNotWaiting = errors.New("agents: conversation is not waiting")
	// ErrAgentUnavailable is returned when the agent is offline or at
	// capacity.
	ErrAgentUnavailable = errors.New("agents: agent cannot take more conversations")
	// ErrNotAssignee is returned when an agent acts on a conversation
	// assigned to someone else.
	ErrNotAssignee = errors.New("agents: conversation assigned to another agent")
)

// DB is the pgx surface the repository uses; *pgxpool.Pool satisfies it in
// production and pgxmock in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists agents and performs the assignment transitions. Every
// transition that touches both a conversation row and an agent's load counter
// runs in one transaction so the capacity invariant holds under concurrent
// claims.
type Repository struct {
	db DB
}

// NewRepository creates an agent repository.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("agents: db required")
	}
	return &Repository{db: db}
}

const agentColumns = `
	id, name, email, role, store_id, zone_id, status,
	active_conversations, max_conversations, created_at`

// GetByID returns one agent.
func (r *Repository) GetByID(ctx context.Context, id string) (Agent, error) {
	row := r.db.QueryRow(ctx, `
		SELECT`+agentColumns+`
		FROM agents
		WHERE id = $1`, id)
	agent, err := scanAgent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrAgentNotFound
	}
	if err != nil {
		return Agent{}, fmt.Errorf("agents: get %s: %w", id, err)
	}
	return agent, nil
}

// Assign gives a waiting conversation to the agent. The agent's load counter
// and BUSY derivation change in the same UPDATE that enforces capacity, so
// two concurrent claims can never push an agent past max_conversations, and
// the conversation row guard makes assignment exclusive.
func (r *Repository) Assign(ctx context.Context, conversationID, agentID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("agents: begin assign: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE agents
		SET active_conversations = active_conversations + 1,
		    status = CASE
		        WHEN active_conversations + 1 >= max_conversations THEN 'BUSY'
		        ELSE status
		    END
		WHERE id = $1
		  AND status = 'AVAILABLE'
		  AND active_conversations < max_conversations`, agentID)
	if err != nil {
		return fmt.Errorf("agents: reserve capacity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAgentUnavailable
	}

	tag, err = tx.Exec(ctx, `
		UPDATE conversations
		SET status = $3, assigned_agent_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = $4`,
		conversationID, agentID, conversation.StatusAssigned, conversation.StatusWaiting)
	if err != nil {
		return fmt.Errorf("agents: assign conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotWaiting
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("agents: commit assign: %w", err)
	}
	return nil
}

// Resolve closes a conversation the agent owns and releases one unit of
// capacity.
func (r *Repository) Resolve(ctx context.Context, conversationID, agentID string) error {
	return r.release(ctx, conversationID, agentID, conversation.StatusResolved, false)
}

// TransferToBot hands the conversation back to the dialogue engine and
// releases one unit of capacity.
func (r *Repository) TransferToBot(ctx context.Context, conversationID, agentID string) error {
	return r.release(ctx, conversationID, agentID, conversation.StatusBot, true)
}

func (r *Repository) release(ctx context.Context, conversationID, agentID string, to conversation.Status, clearAssignee bool) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("agents: begin release: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE conversations
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4 AND assigned_agent_id = $2`
	if clearAssignee {
		query = `
		UPDATE conversations
		SET status = $3, assigned_agent_id = NULL, updated_at = NOW()
		WHERE id = $1 AND status = $4 AND assigned_agent_id = $2`
	}
	tag, err := tx.Exec(ctx, query,
		conversationID, agentID, to, conversation.StatusAssigned)
	if err != nil {
		return fmt.Errorf("agents: release conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotAssignee
	}

	// Dropping below capacity flips BUSY back to AVAILABLE; OFFLINE stays.
	_, err = tx.Exec(ctx, `
		UPDATE agents
		SET active_conversations = GREATEST(active_conversations - 1, 0),
		    status = CASE
		        WHEN status = 'BUSY'
		         AND GREATEST(active_conversations - 1, 0) < max_conversations THEN 'AVAILABLE'
		        ELSE status
		    END
		WHERE id = $1`, agentID)
	if err != nil {
		return fmt.Errorf("agents: release capacity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("agents: commit release: %w", err)
	}
	return nil
}

// SetAvailability moves an agent between AVAILABLE and OFFLINE. BUSY cannot
// be requested; it is derived from load.
func (r *Repository) SetAvailability(ctx context.Context, agentID string, status Availability) error {
	if status != AvailabilityAvailable && status != AvailabilityOffline {
		return fmt.Errorf("agents: availability %q cannot be set directly", status)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE agents
		SET status = CASE
		    WHEN $2 = 'AVAILABLE' AND active_conversations >= max_conversations THEN 'BUSY'
		    ELSE $2
		END
		WHERE id = $1`, agentID, string(status))
	if err != nil {
		return fmt.Errorf("agents: set availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAgentNotFound
	}
	return nil
}

// ListWaiting returns waiting conversations visible in the scope, oldest
// first. Unscoped conversations are claimable by anyone, so they always show.
func (r *Repository) ListWaiting(ctx context.Context, scope ListScope) ([]conversation.Conversation, error) {
	query := `
		SELECT` + listColumns + `
		FROM conversations
		WHERE status = $1`
	args := []any{conversation.StatusWaiting}
	switch {
	case scope.ZoneID != "":
		query += ` AND (zone_id = $2 OR store_id IS NULL)`
		args = append(args, scope.ZoneID)
	case scope.StoreID != "":
		query += ` AND (store_id = $2 OR store_id IS NULL)`
		args = append(args, scope.StoreID)
	}
	query += ` ORDER BY updated_at ASC`

	return r.listConversations(ctx, "list waiting", query, args...)
}

// ListAssignedTo returns the conversations currently assigned to the agent,
// most recently touched first.
func (r *Repository) ListAssignedTo(ctx context.Context, agentID string) ([]conversation.Conversation, error) {
	return r.listConversations(ctx, "list assigned", `
		SELECT`+listColumns+`
		FROM conversations
		WHERE status = $1 AND assigned_agent_id = $2
		ORDER BY updated_at DESC`,
		conversation.StatusAssigned, agentID)
}

// ListAll returns every conversation visible in the scope, most recently
// touched first.
func (r *Repository) ListAll(ctx context.Context, scope ListScope) ([]conversation.Conversation, error) {
	query := `
		SELECT` + listColumns + `
		FROM conversations`
	var args []any
	switch {
	case scope.ZoneID != "":
		query += ` WHERE zone_id = $1 OR store_id IS NULL`
		args = append(args, scope.ZoneID)
	case scope.StoreID != "":
		query += ` WHERE store_id = $1 OR store_id IS NULL`
		args = append(args, scope.StoreID)
	}
	query += ` ORDER BY updated_at DESC`

	return r.listConversations(ctx, "list all", query, args...)
}

const listColumns = `
	id, customer_id, status, assigned_agent_id, store_id, zone_id,
	created_at, updated_at`

func (r *Repository) listConversations(ctx context.Context, op, query string, args ...any) ([]conversation.Conversation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("agents: %s: %w", op, err)
	}
	defer rows.Close()

	var out []conversation.Conversation
	for rows.Next() {
		var (
			conv    conversation.Conversation
			agentID *string
			store   *string
			zone    *string
		)
		if err := rows.Scan(&conv.ID, &conv.CustomerID, &conv.Status, &agentID, &store, &zone, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("agents: %s scan: %w", op, err)
		}
		if agentID != nil {
			conv.AssignedAgentID = *agentID
		}
		if store != nil {
			conv.StoreID = *store
		}
		if zone != nil {
			conv.ZoneID = *zone
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// ManagersFor returns the agents to alert when a conversation starts waiting:
// the store's managers, the zone's supervisor and the regional level.
func (r *Repository) ManagersFor(ctx context.Context, storeID, zoneID string) ([]Agent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+agentColumns+`
		FROM agents
		WHERE role <> $1
		  AND (store_id = $2 OR (role = $3 AND zone_id = $4) OR role = $5)`,
		RoleSeller, storeID, RoleZoneSupervisor, zoneID, RoleRegionalManager)
	if err != nil {
		return nil, fmt.Errorf("agents: list managers: %w", err)
	}
	defer rows.Close()

	var out []Agent
	for rows.Next() {
		agent, err := scanAgentFromRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, agent)
	}
	return out, rows.Err()
}

func scanAgent(row pgx.Row) (Agent, error) {
	var a Agent
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Role, &a.StoreID, &a.ZoneID, &a.Status,
		&a.ActiveConversations, &a.MaxConversations, &a.CreatedAt)
	return a, err
}

func scanAgentFromRows(rows pgx.Rows) (Agent, error) {
	var a Agent
	err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.Role, &a.StoreID, &a.ZoneID, &a.Status,
		&a.ActiveConversations, &a.MaxConversations, &a.CreatedAt)
	if err != nil {
		return Agent{}, fmt.Errorf("agents: scan agent: %w", err)
	}
	return a, nil
}
