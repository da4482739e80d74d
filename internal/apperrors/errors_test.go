package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf_Wrapped(t *testing.T) {
	base := Persistence("sort table", errors.New("connection reset"))
	wrapped := fmt.Errorf("view: %w", base)

	if KindOf(wrapped) != KindPersistence {
		t.Errorf("expected persistence kind, got %v", KindOf(wrapped))
	}
	if !IsRetryable(wrapped) {
		t.Error("persistence errors should be retryable")
	}
	if HTTPStatus(wrapped) != http.StatusServiceUnavailable {
		t.Errorf("unexpected status %d", HTTPStatus(wrapped))
	}
}

func TestValidation(t *testing.T) {
	err := Validation(errors.New("unknown operator \"like\""))
	if !Is(err, KindValidation) {
		t.Error("expected validation kind")
	}
	if IsRetryable(err) {
		t.Error("validation errors are not retryable")
	}
	if err.Error() != `invalid request: unknown operator "like"` {
		t.Errorf("unexpected message %q", err.Error())
	}
	if HTTPStatus(err) != http.StatusBadRequest {
		t.Errorf("unexpected status %d", HTTPStatus(err))
	}
}

func TestPlainError(t *testing.T) {
	err := errors.New("boom")
	if KindOf(err) != 0 {
		t.Error("plain errors have no kind")
	}
	if HTTPStatus(err) != http.StatusInternalServerError {
		t.Errorf("unexpected status %d", HTTPStatus(err))
	}
	if HTTPStatus(NotFound("table not found")) != http.StatusNotFound {
		t.Error("expected 404 for not found")
	}
}
