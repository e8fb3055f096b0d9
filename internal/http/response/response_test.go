package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/drugorders/identity-service/internal/domain"
)

func TestFromErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
		code string
	}{
		{err: domain.ValidationError{Field: "password", Msg: "is too short"}, want: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{err: domain.ErrUserAlreadyExists, want: http.StatusConflict, code: "ALREADY_EXISTS"},
		{err: domain.ErrInvalidCredentials, want: http.StatusUnauthorized, code: "INVALID_CREDENTIALS"},
		{err: fmt.Errorf("lookup: %w", domain.ErrUserNotFound), want: http.StatusNotFound, code: "NOT_FOUND"},
		{err: fmt.Errorf("ping: %w", domain.ErrStoreUnavailable), want: http.StatusServiceUnavailable, code: "STORE_UNAVAILABLE"},
		{err: errors.New("boom"), want: http.StatusInternalServerError, code: "INTERNAL"},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-Id", "req-1")
		FromError(rr, req, tc.err)
		if rr.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rr.Code)
		}
		var body envelope
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Success || body.Error == nil || body.Error.Code != tc.code {
			t.Fatalf("%v: unexpected envelope %s", tc.err, rr.Body.String())
		}
		if body.Meta.RequestID != "req-1" {
			t.Fatalf("expected request id in meta, got %q", body.Meta.RequestID)
		}
	}
}
