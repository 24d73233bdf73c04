package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	pgDup := &pgconn.PgError{Code: "23505", ConstraintName: "uniq_active_rental"}

	if !IsUniqueViolation(pgDup, "") {
		t.Fatal("pg 23505 should be a unique violation")
	}
	if !IsUniqueViolation(pgDup, "uniq_active_rental") {
		t.Fatal("constraint name should match")
	}
	if IsUniqueViolation(pgDup, "other_constraint") {
		t.Fatal("mismatched constraint should not match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatal("foreign key violation is not a unique violation")
	}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), "") {
		t.Fatal("translated gorm duplicate key should match")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: rentals.buyer_id"), "") {
		t.Fatal("sqlite message should match")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error should not match")
	}
}
