package tenant

import (
	"errors"
	"strings"
	"testing"

	"github.com/Strob0t/StaffForge/internal/domain"
)

func TestCreateRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateRequest
		wantErr bool
	}{
		{"valid", CreateRequest{Name: "Acme Consulting", Slug: "acme-consulting"}, false},
		{"missing name", CreateRequest{Slug: "acme"}, true},
		{"long name", CreateRequest{Name: strings.Repeat("a", 201), Slug: "acme"}, true},
		{"uppercase slug", CreateRequest{Name: "Acme", Slug: "Acme"}, true},
		{"short slug", CreateRequest{Name: "Acme", Slug: "ac"}, true},
		{"trailing hyphen", CreateRequest{Name: "Acme", Slug: "acme-"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestUpdateRequestValidate(t *testing.T) {
	if err := (UpdateRequest{Name: strings.Repeat("a", 201)}).Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := (UpdateRequest{}).Validate(); err != nil {
		t.Fatalf("empty update: %v", err)
	}
}
