package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestExportErrorFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      *ExportError
		wantErr  string
		wantUser string
	}{
		{
			name:     "what only",
			err:      &ExportError{What: "something broke"},
			wantErr:  "something broke",
			wantUser: "Error: something broke",
		},
		{
			name:     "what and why",
			err:      &ExportError{What: "something broke", Why: "bad input"},
			wantErr:  "something broke: bad input",
			wantUser: "Error: something broke\n\nWhy: bad input",
		},
		{
			name: "full error",
			err: &ExportError{
				What: "something broke",
				Why:  "bad input",
				Fix:  "try again",
			},
			wantErr:  "something broke: bad input",
			wantUser: "Error: something broke\n\nWhy: bad input\n\nFix: try again",
		},
		{
			name: "with cause",
			err: &ExportError{
				What:  "something broke",
				Cause: errors.New("underlying error"),
			},
			wantErr:  "something broke: underlying error",
			wantUser: "Error: something broke",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantErr {
				t.Errorf("Error() = %q, want %q", got, tt.wantErr)
			}
			if got := tt.err.UserMessage(); got != tt.wantUser {
				t.Errorf("UserMessage() = %q, want %q", got, tt.wantUser)
			}
		})
	}
}

func TestExportErrorJSON(t *testing.T) {
	err := ErrCollectionNotFound("col-1").WithCause(errors.New("no rows"))

	data, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		t.Fatalf("MarshalJSON failed: %v", marshalErr)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if result["code"] != string(CodeCollectionNotFound) {
		t.Errorf("code = %v, want %v", result["code"], CodeCollectionNotFound)
	}
	if result["what"] != "collection col-1 not found" {
		t.Errorf("what = %v", result["what"])
	}
	if result["cause"] != "no rows" {
		t.Errorf("cause = %v, want %v", result["cause"], "no rows")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("export: %w", ErrDocumentStore("find document", errors.New("connection refused")))

	if !errors.Is(wrapped, &ExportError{Code: CodeDocumentStore}) {
		t.Error("errors.Is should match on code through wrapping")
	}
	if errors.Is(wrapped, &ExportError{Code: CodeBlobFetch}) {
		t.Error("errors.Is should not match a different code")
	}
	if !HasCode(wrapped, CodeDocumentStore) {
		t.Error("HasCode should find the wrapped code")
	}
}

func TestAsExportError(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := fmt.Errorf("run: %w", ErrArchiveFinalize(cause))

	got := AsExportError(wrapped)
	if got == nil {
		t.Fatal("expected ExportError")
	}
	if got.Code != CodeArchiveFinalize {
		t.Errorf("Code = %v, want %v", got.Code, CodeArchiveFinalize)
	}
	if !errors.Is(got, cause) {
		t.Error("cause should be reachable via Unwrap")
	}

	if AsExportError(errors.New("plain")) != nil {
		t.Error("plain error should not convert")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *ExportError
		want int
	}{
		{ErrCollectionNotFound("x"), 404},
		{ErrConfigInvalid("export.format", "bad"), 400},
		{ErrDocumentStore("list", nil), 503},
		{ErrArchiveFinalize(nil), 500},
		{Wrap(errors.New("x"), "unknown"), 500},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			if got := tt.err.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}
