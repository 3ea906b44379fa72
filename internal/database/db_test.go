package database

import (
	"errors"
	"testing"

	"github.com/hmarchena/gatewarden/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapPostgresError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil passes through", nil, nil},
		{"no rows becomes not found", pgx.ErrNoRows, models.ErrNotFound},
		{"unique violation becomes conflict", &pgconn.PgError{Code: "23505"}, models.ErrConflict},
		{"foreign key violation becomes bad request", &pgconn.PgError{Code: "23503"}, models.ErrBadRequest},
		{"not null violation becomes bad request", &pgconn.PgError{Code: "23502"}, models.ErrBadRequest},
		{"check violation becomes bad request", &pgconn.PgError{Code: "23514"}, models.ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapPostgresError(tt.in))
		})
	}
}

func TestMapPostgresError_WrappedDriverError(t *testing.T) {
	wrapped := errors.Join(errors.New("insert token"), &pgconn.PgError{Code: "23514"})
	assert.Equal(t, models.ErrBadRequest, MapPostgresError(wrapped))
}

func TestMapPostgresError_UnknownErrorUnchanged(t *testing.T) {
	cause := errors.New("connection reset")
	assert.Same(t, cause, MapPostgresError(cause))

	unknownCode := &pgconn.PgError{Code: "42P01"}
	assert.Equal(t, error(unknownCode), MapPostgresError(unknownCode))
}
