package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
)

func TestAssignHappyPath(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE agents`).
		WithArgs("agent-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE conversations`).
		WithArgs("conv-1", "agent-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	repo := NewRepository(mock)
	if err := repo.Assign(context.Background(), "conv-1", "agent-1"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAssignAgentAtCapacity(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	// The guarded UPDATE matches no row when the agent is full or offline,
	// and the whole transaction rolls back.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE agents`).
		WithArgs("agent-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	repo := NewRepository(mock)
	err = repo.Assign(context.Background(), "conv-1", "agent-1")
	if !errors.Is(err, ErrAgentUnavailable) {
		t.Fatalf("err = %v, want ErrAgentUnavailable", err)
	}
}

func TestAssignConversationNotWaiting(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	// Another agent won the race: the capacity reservation must roll back.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE agents`).
		WithArgs("agent-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE conversations`).
		WithArgs("conv-1", "agent-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	repo := NewRepository(mock)
	err = repo.Assign(context.Background(), "conv-1", "agent-1")
	if !errors.Is(err, ErrNotWaiting) {
		t.Fatalf("err = %v, want ErrNotWaiting", err)
	}
}

func TestResolveRequiresAssignee(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE conversations`).
		WithArgs("conv-1", "intruder", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	repo := NewRepository(mock)
	err = repo.Resolve(context.Background(), "conv-1", "intruder")
	if !errors.Is(err, ErrNotAssignee) {
		t.Fatalf("err = %v, want ErrNotAssignee", err)
	}
}

func TestResolveReleasesCapacity(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE conversations`).
		WithArgs("conv-1", "agent-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE agents`).
		WithArgs("agent-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	repo := NewRepository(mock)
	if err := repo.Resolve(context.Background(), "conv-1", "agent-1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListWaitingFiltersByZone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "customer_id", "status", "assigned_agent_id", "store_id", "zone_id",
		"created_at", "updated_at",
	}).AddRow("conv-1", "cust-1", "WAITING", nil, ptr("centro"), ptr("capital"), now, now)

	mock.ExpectQuery(`SELECT .* FROM conversations WHERE status = \$1 AND \(zone_id = \$2 OR store_id IS NULL\)`).
		WithArgs(pgxmock.AnyArg(), "capital").
		WillReturnRows(rows)

	repo := NewRepository(mock)
	waiting, err := repo.ListWaiting(context.Background(), ListScope{ZoneID: "capital"})
	if err != nil {
		t.Fatalf("ListWaiting: %v", err)
	}
	if len(waiting) != 1 || waiting[0].ZoneID != "capital" {
		t.Errorf("waiting = %+v", waiting)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListAssignedToFiltersByAgent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "customer_id", "status", "assigned_agent_id", "store_id", "zone_id",
		"created_at", "updated_at",
	}).AddRow("conv-1", "cust-1", "ASSIGNED", ptr("agent-1"), ptr("centro"), ptr("capital"), now, now)

	mock.ExpectQuery(`SELECT .* FROM conversations WHERE status = \$1 AND assigned_agent_id = \$2`).
		WithArgs(pgxmock.AnyArg(), "agent-1").
		WillReturnRows(rows)

	repo := NewRepository(mock)
	assigned, err := repo.ListAssignedTo(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("ListAssignedTo: %v", err)
	}
	if len(assigned) != 1 || assigned[0].AssignedAgentID != "agent-1" {
		t.Errorf("assigned = %+v", assigned)
	}
}

func TestManagersForIncludesZoneSupervisor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "name", "email", "role", "store_id", "zone_id", "status",
		"active_conversations", "max_conversations", "created_at",
	}).
		AddRow("m1", "Gerente Centro", "gerente@tienda.test", "MANAGER", "centro", "capital", "AVAILABLE", 0, 5, now).
		AddRow("z1", "Supervisora Capital", "zona@tienda.test", "ZONE_SUPERVISOR", "", "capital", "AVAILABLE", 0, 5, now)

	mock.ExpectQuery(`SELECT .* FROM agents`).
		WithArgs(pgxmock.AnyArg(), "centro", pgxmock.AnyArg(), "capital", pgxmock.AnyArg()).
		WillReturnRows(rows)

	repo := NewRepository(mock)
	managers, err := repo.ManagersFor(context.Background(), "centro", "capital")
	if err != nil {
		t.Fatalf("ManagersFor: %v", err)
	}
	if len(managers) != 2 || managers[1].Role != RoleZoneSupervisor {
		t.Errorf("managers = %+v", managers)
	}
}

func ptr(s string) *string { return &s }

func TestSetAvailabilityRejectsBusy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewRepository(mock)
	if err := repo.SetAvailability(context.Background(), "agent-1", AvailabilityBusy); err == nil {
		t.Fatal("BUSY is derived, setting it directly must fail")
	}
}
