package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFollowsWrappedKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("castVote: %w", ErrAuthRequired), http.StatusUnauthorized, "AuthRequired"},
		{fmt.Errorf("castVote: %w", ErrSelfVoteForbidden), http.StatusForbidden, "SelfVoteForbidden"},
		{fmt.Errorf("answer a1: %w", ErrNotFound), http.StatusNotFound, "NotFound"},
		{fmt.Errorf("ledger: %w", ErrWriteConflict), http.StatusConflict, "WriteConflict"},
		{ErrRateLimited, http.StatusTooManyRequests, "RateLimited"},
		{ErrInvalid, http.StatusBadRequest, "Invalid"},
		{errors.New("boom"), http.StatusInternalServerError, "Internal"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, Status(tc.err), tc.err.Error())
		assert.Equal(t, tc.code, Code(tc.err), tc.err.Error())
	}
	assert.Equal(t, http.StatusOK, Status(nil))
}
