package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeSecurityToken, status: http.StatusForbidden, publicMsg: "Invalid security token"},
		{code: CodeIdempotency, status: http.StatusConflict, publicMsg: "idempotency key reused", detailsOK: true},
		{code: CodeInFlight, status: http.StatusConflict, publicMsg: "request already in progress", retryable: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "rate limit exceeded"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestFieldErrorsCollectsAllMessages(t *testing.T) {
	fields := FieldErrors{}
	if fields.Err() != nil {
		t.Fatalf("empty field errors should produce nil")
	}

	fields.Add("table", "Table must be between 1 and 50.")
	fields.Add("guests", "Guests must be between 1 and 20.")
	fields.Add("guests", "ignored duplicate")

	err := As(fields.Err())
	if err == nil || err.Code() != CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := "Guests must be between 1 and 20.; Table must be between 1 and 50."
	if err.Message() != want {
		t.Fatalf("unexpected message %q", err.Message())
	}
	details, ok := err.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", err.Details())
	}
	if got := details["fields"].(map[string]string)["guests"]; got != "Guests must be between 1 and 20." {
		t.Fatalf("first message should win, got %q", got)
	}
}

func TestIsCodeWalksChain(t *testing.T) {
	inner := New(CodeConflict, "taken")
	outer := fmt.Errorf("create: %w", inner)
	if !IsCode(outer, CodeConflict) {
		t.Fatalf("expected conflict in chain")
	}
	if IsCode(outer, CodeNotFound) {
		t.Fatalf("did not expect not found")
	}
}

func TestDumpReadsSQLiteErrors(t *testing.T) {
	liteErr := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	d := Dump(fmt.Errorf("insert: %w", liteErr))
	if d.Driver != "sqlite" {
		t.Fatalf("expected sqlite driver, got %+v", d)
	}
	if d.DBCode != "2067" {
		t.Fatalf("expected extended unique code, got %q", d.DBCode)
	}
}

func TestDumpCollectsChainAndPGFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_reservations_active_slot", Message: "duplicate key"}
	err := Wrap(CodeDependency, fmt.Errorf("insert: %w", pgErr), "db: insert reservation")

	d := Dump(err)
	if d.Code != CodeDependency {
		t.Fatalf("unexpected code %s", d.Code)
	}
	if d.Driver != "postgres" || d.DBCode != "23505" || d.DBConstraint != "ux_reservations_active_slot" {
		t.Fatalf("pg fields not extracted: %+v", d)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d", len(d.Chain))
	}
}
