package security

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		maxSize int
		want    error
	}{
		{"empty", "", 0, nil},
		{"flat args", `{"debtId":"x","dryRun":false}`, 0, nil},
		{"too large", `{"note":"` + strings.Repeat("a", 100) + `"}`, 50, ErrBodyTooLarge},
		{"too deep", strings.Repeat("[", 9) + strings.Repeat("]", 9), 0, ErrJSONTooDeep},
		{"at depth limit", strings.Repeat("[", 8) + strings.Repeat("]", 8), 0, nil},
		{"malformed", `{"a":`, 0, ErrInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateBody([]byte(tt.body), tt.maxSize, 0)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
