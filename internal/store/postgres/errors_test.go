package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestConstraintHelpers(t *testing.T) {
	fk := &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: projectClientConstraint}
	wrapped := fmt.Errorf("insert: %w", fk)

	require.True(t, isForeignKeyViolation(wrapped, ""))
	require.True(t, isForeignKeyViolation(wrapped, projectClientConstraint))
	require.False(t, isForeignKeyViolation(wrapped, "memberships_org_id_fkey"))
	require.False(t, isUniqueViolation(wrapped))

	unique := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "clients_pkey"}
	require.True(t, isUniqueViolation(unique))
	require.False(t, isForeignKeyViolation(errors.New("plain"), ""))
}

func TestMapPostgresError(t *testing.T) {
	require.NoError(t, mapPostgresError(nil))

	plain := errors.New("plain")
	require.Equal(t, plain, mapPostgresError(plain))

	pgErr := &pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "projects_budget_check"}
	err := mapPostgresError(pgErr)
	require.ErrorIs(t, err, pgErr)
	require.Contains(t, err.Error(), "check constraint violation: projects_budget_check")
}
