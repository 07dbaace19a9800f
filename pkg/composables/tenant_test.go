package composables

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestUseTenantID(t *testing.T) {
	ctx := context.Background()

	if _, err := UseTenantID(ctx); !errors.Is(err, ErrNoTenant) {
		t.Fatalf("expected ErrNoTenant, got %v", err)
	}

	id := uuid.New()
	got, err := UseTenantID(WithTenantID(ctx, id))
	if err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Fatalf("expected %s, got %s", id, got)
	}

	if _, err := UseTenantID(WithTenantID(ctx, uuid.Nil)); !errors.Is(err, ErrNoTenant) {
		t.Fatalf("nil tenant should be rejected, got %v", err)
	}
}
