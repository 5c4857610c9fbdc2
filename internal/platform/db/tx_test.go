package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestTxFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert patient: %w", &pgconn.PgError{Code: "23505", ConstraintName: "patient_email_key"})

	if !IsUniqueViolation(err, "") {
		t.Error("expected unique violation for any constraint")
	}
	if !IsUniqueViolation(err, "patient_email_key") {
		t.Error("expected unique violation for matching constraint")
	}
	if IsUniqueViolation(err, "patient_national_id_lookup_key") {
		t.Error("expected no match for a different constraint")
	}
}

func TestIsUniqueViolation_OtherErrors(t *testing.T) {
	if IsUniqueViolation(errors.New("boom"), "") {
		t.Error("plain error is not a unique violation")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Error("foreign key violation is not a unique violation")
	}
	if IsUniqueViolation(nil, "") {
		t.Error("nil is not a unique violation")
	}
}

func TestWithSavepoint_NoTransactionRunsDirectly(t *testing.T) {
	called := false
	err := WithSavepoint(context.Background(), func(ctx context.Context) error {
		called = true
		if TxFromContext(ctx) != nil {
			t.Error("expected no transaction in context")
		}
		return nil
	})
	if err != nil || !called {
		t.Fatalf("expected fn to run without error, called=%v err=%v", called, err)
	}

	boom := errors.New("boom")
	if err := WithSavepoint(context.Background(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("expected fn error to propagate, got %v", err)
	}
}

func TestAdvisoryXactLock_RequiresTransaction(t *testing.T) {
	if err := AdvisoryXactLock(context.Background(), 42); !errors.Is(err, ErrNoTransaction) {
		t.Errorf("expected ErrNoTransaction, got %v", err)
	}
}
