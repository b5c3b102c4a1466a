package service

import (
	"context"
	"errors"
	"testing"

	"smartpay/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestStorageErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, apperror.CodeCommitConflict},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, apperror.CodeCommitConflict},
		{"lock timeout", &pgconn.PgError{Code: "55P03"}, apperror.CodeBusy},
		{"deadline", context.DeadlineExceeded, apperror.CodeBusy},
		{"canceled", context.Canceled, apperror.CodeBusy},
		{"constraint", &pgconn.PgError{Code: "23514"}, apperror.CodeStorageUnavailable},
		{"other", errors.New("broken pipe"), apperror.CodeStorageUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storageErr("op", tt.err)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
			assert.True(t, apperror.IsRetryable(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestStorageErr_PassesAppErrorThrough(t *testing.T) {
	orig := apperror.ErrWalletNotFound("X")
	err := storageErr("op", orig)
	assert.Same(t, orig, err)
}
