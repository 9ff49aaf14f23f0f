package validation

import (
	"strings"
	"testing"

	"github.com/kbukum/changefeed/errors"
)

type subscribeCmd struct {
	Table   string `json:"table" validate:"required,tablename"`
	Mode    string `json:"mode" validate:"omitempty,oneof=pull push"`
	BufSize int    `validate:"min=0,max=64"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      subscribeCmd
		wantErr string
	}{
		{"valid", subscribeCmd{Table: "test", Mode: "pull"}, ""},
		{"missing table", subscribeCmd{}, "table: is required"},
		{"bad table name", subscribeCmd{Table: "drop table;"}, "table: must contain only letters"},
		{"bad mode", subscribeCmd{Table: "t", Mode: "both"}, "mode: must be one of: pull push"},
		{"snake case fallback", subscribeCmd{Table: "t", BufSize: 65}, "buf_size: must be at most 64"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.in)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tc.wantErr)
			}
			if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestValidate_DetailsListFields(t *testing.T) {
	err := Validate(subscribeCmd{Mode: "x"})
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	fields, ok := appErr.Details["fields"].([]FieldError)
	if !ok || len(fields) != 2 {
		t.Fatalf("expected two field errors, got %#v", appErr.Details["fields"])
	}
}

func TestTableName(t *testing.T) {
	for _, name := range []string{"test", "Test_2", "_x"} {
		if !TableName(name) {
			t.Errorf("%q should be valid", name)
		}
	}
	for _, name := range []string{"", "a-b", "a b", "ü"} {
		if TableName(name) {
			t.Errorf("%q should be invalid", name)
		}
	}
}
