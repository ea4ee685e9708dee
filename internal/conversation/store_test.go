package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/tiendatec/chat-platform/internal/flow"
)

func conversationRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "customer_id", "status", "assigned_agent_id", "store_id", "zone_id",
		"flow_type", "flow_step", "flow_data", "flow_started_at",
		"created_at", "updated_at",
	})
}

func TestGetActiveByCustomerDecodesFlowState(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	now := time.Now()
	started := now.Add(-5 * time.Minute)
	flowType := flow.FlowQuotation
	step := "quantity"

	mock.ExpectQuery(`SELECT .* FROM conversations`).
		WithArgs("cust-1", StatusResolved).
		WillReturnRows(conversationRows().AddRow(
			"conv-1", "cust-1", string(StatusBot), nil, nil, nil,
			&flowType, &step, []byte(`{"product_id":"guardas"}`), &started,
			now, now,
		))

	store := NewStore(mock)
	conv, err := store.GetActiveByCustomer(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("GetActiveByCustomer: %v", err)
	}
	if conv.Flow == nil {
		t.Fatal("expected flow state")
	}
	if conv.Flow.Type != flow.FlowQuotation || conv.Flow.Step != "quantity" {
		t.Errorf("flow = %+v", conv.Flow)
	}
	if conv.Flow.Data["product_id"] != "guardas" {
		t.Errorf("flow data = %v", conv.Flow.Data)
	}
}

func TestGetActiveByCustomerNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT .* FROM conversations`).
		WithArgs("cust-1", StatusResolved).
		WillReturnRows(conversationRows())

	store := NewStore(mock)
	_, err = store.GetActiveByCustomer(context.Background(), "cust-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveFlowStateClearsAllColumnsTogether(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`UPDATE conversations\s+SET flow_type = NULL`).
		WithArgs("conv-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewStore(mock)
	if err := store.SaveFlowState(context.Background(), "conv-1", nil); err != nil {
		t.Fatalf("SaveFlowState: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSetStoreWritesBothColumns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`UPDATE conversations\s+SET store_id = \$2, zone_id = \$3`).
		WithArgs("conv-1", "centro", "capital").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewStore(mock)
	if err := store.SetStore(context.Background(), "conv-1", "centro", "capital"); err != nil {
		t.Fatalf("SetStore: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSetStatusMissingConversation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`UPDATE conversations`).
		WithArgs("conv-x", StatusResolved).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewStore(mock)
	if err := store.SetStatus(context.Background(), "conv-x", StatusResolved); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
