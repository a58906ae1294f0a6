package tenancy

import (
	"context"
	"testing"
)

func TestProfessionalIDRoundTrip(t *testing.T) {
	ctx := WithProfessionalID(context.Background(), "prof-123")

	id, ok := ProfessionalIDFromContext(ctx)
	if !ok {
		t.Fatal("expected professional id to be present")
	}
	if id != "prof-123" {
		t.Fatalf("expected prof-123, got %s", id)
	}
}

func TestProfessionalIDMissing(t *testing.T) {
	if _, ok := ProfessionalIDFromContext(context.Background()); ok {
		t.Fatal("expected no professional id on empty context")
	}
}

func TestProfessionalIDEmptyValue(t *testing.T) {
	ctx := WithProfessionalID(context.Background(), "")
	if _, ok := ProfessionalIDFromContext(ctx); ok {
		t.Fatal("expected empty professional id to report absent")
	}
}
