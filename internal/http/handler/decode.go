package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/drugorders/identity-service/internal/domain"
)

// decodeJSON reads exactly one JSON object and rejects unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return domain.ValidationError{Msg: "request body too large"}
		case errors.Is(err, io.EOF):
			return domain.ValidationError{Msg: "request body is required"}
		default:
			return domain.ValidationError{Msg: fmt.Sprintf("malformed JSON: %v", err)}
		}
	}
	if dec.More() {
		return domain.ValidationError{Msg: "request body must hold a single object"}
	}
	return nil
}
