package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tiendatec/chat-platform/internal/flow"
)

// ErrNotFound is returned when no conversation matches the lookup.
var ErrNotFound = errors.New("conversation: not found")

// DB is the pgx surface the stores use. *pgxpool.Pool satisfies it in
// production and pgxmock in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists conversations in Postgres. A partial unique index on
// (customer_id) WHERE status <> 'RESOLVED' backs the one-active-conversation
// invariant at the database level.
type Store struct {
	db DB
}

// NewStore creates a conversation store.
func NewStore(db DB) *Store {
	if db == nil {
		panic("conversation: db required")
	}
	return &Store{db: db}
}

const conversationColumns = `
	id, customer_id, status, assigned_agent_id, store_id, zone_id,
	flow_type, flow_step, flow_data, flow_started_at,
	created_at, updated_at`

// Create opens a new bot-owned conversation for the customer.
func (s *Store) Create(ctx context.Context, customerID string) (Conversation, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO conversations (id, customer_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING`+conversationColumns,
		uuid.NewString(), customerID, StatusBot)

	conv, err := scanConversation(row)
	if err != nil {
		return Conversation{}, fmt.Errorf("conversation: create for customer %s: %w", customerID, err)
	}
	return conv, nil
}

// GetActiveByCustomer returns the customer's open conversation, if any.
func (s *Store) GetActiveByCustomer(ctx context.Context, customerID string) (Conversation, error) {
	row := s.db.QueryRow(ctx, `
		SELECT`+conversationColumns+`
		FROM conversations
		WHERE customer_id = $1 AND status <> $2`,
		customerID, StatusResolved)

	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("conversation: active for customer %s: %w", customerID, err)
	}
	return conv, nil
}

// GetByID returns one conversation.
func (s *Store) GetByID(ctx context.Context, id string) (Conversation, error) {
	row := s.db.QueryRow(ctx, `
		SELECT`+conversationColumns+`
		FROM conversations
		WHERE id = $1`, id)

	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("conversation: get %s: %w", id, err)
	}
	return conv, nil
}

// SaveFlowState writes the flow position, or clears every flow column when
// state is nil. The columns always change together.
func (s *Store) SaveFlowState(ctx context.Context, conversationID string, state *flow.State) error {
	if state == nil {
		_, err := s.db.Exec(ctx, `
			UPDATE conversations
			SET flow_type = NULL, flow_step = NULL, flow_data = NULL,
			    flow_started_at = NULL, updated_at = NOW()
			WHERE id = $1`, conversationID)
		if err != nil {
			return fmt.Errorf("conversation: clear flow state %s: %w", conversationID, err)
		}
		return nil
	}

	data, err := json.Marshal(state.Data)
	if err != nil {
		return fmt.Errorf("conversation: encode flow data: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		UPDATE conversations
		SET flow_type = $2, flow_step = $3, flow_data = $4,
		    flow_started_at = $5, updated_at = NOW()
		WHERE id = $1`,
		conversationID, state.Type, state.Step, data, state.StartedAt)
	if err != nil {
		return fmt.Errorf("conversation: save flow state %s: %w", conversationID, err)
	}
	return nil
}

// SetStatus moves the conversation. Assignment and resolution by agents go
// through the agents repository, which also maintains load counters; this
// covers bot-driven moves (WAITING on handoff, RESOLVED on farewell).
func (s *Store) SetStatus(ctx context.Context, conversationID string, status Status) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE conversations
		SET status = $2, updated_at = NOW()
		WHERE id = $1`, conversationID, status)
	if err != nil {
		return fmt.Errorf("conversation: set status %s: %w", conversationID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStore records the branch and zone a conversation belongs to, used for
// routing visibility once a quotation picks a pickup store. The two columns
// change together so zone scoping never lags the store.
func (s *Store) SetStore(ctx context.Context, conversationID, storeID, zoneID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE conversations
		SET store_id = $2, zone_id = $3, updated_at = NOW()
		WHERE id = $1`, conversationID, storeID, zoneID)
	if err != nil {
		return fmt.Errorf("conversation: set store %s: %w", conversationID, err)
	}
	return nil
}

func scanConversation(row pgx.Row) (Conversation, error) {
	var (
		conv          Conversation
		agentID       *string
		storeID       *string
		zoneID        *string
		flowType      *string
		flowStep      *string
		flowData      []byte
		flowStartedAt *time.Time
	)
	err := row.Scan(&conv.ID, &conv.CustomerID, &conv.Status, &agentID, &storeID, &zoneID,
		&flowType, &flowStep, &flowData, &flowStartedAt,
		&conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return Conversation{}, err
	}
	if agentID != nil {
		conv.AssignedAgentID = *agentID
	}
	if storeID != nil {
		conv.StoreID = *storeID
	}
	if zoneID != nil {
		conv.ZoneID = *zoneID
	}
	if flowType != nil && flowStep != nil && flowStartedAt != nil {
		st := flow.State{Type: *flowType, Step: *flowStep, StartedAt: *flowStartedAt}
		if len(flowData) > 0 {
			if err := json.Unmarshal(flowData, &st.Data); err != nil {
				return Conversation{}, fmt.Errorf("conversation: decode flow data: %w", err)
			}
		}
		if st.Data == nil {
			st.Data = map[string]string{}
		}
		conv.Flow = &st
	}
	return conv, nil
}
