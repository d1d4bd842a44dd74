package store

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/AbhigyanPie/product-impoter/internal/models"
)

func TestDedupeBySKULaterWins(t *testing.T) {
	in := []models.Product{
		{SKU: "a1", Name: "X"},
		{SKU: "b2", Name: "B"},
		{SKU: "a1", Name: "Y", Price: 2},
	}
	out := dedupeBySKU(in)
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
	if out[0].SKU != "a1" || out[0].Name != "Y" || out[0].Price != 2 {
		t.Fatalf("later occurrence should win in place: %+v", out[0])
	}
	if out[1].SKU != "b2" {
		t.Fatalf("first-seen order lost: %+v", out)
	}
}

func TestDedupeBySKUPassthrough(t *testing.T) {
	if out := dedupeBySKU(nil); len(out) != 0 {
		t.Fatalf("nil input: %+v", out)
	}
	one := []models.Product{{SKU: "a1", Name: "A"}}
	if out := dedupeBySKU(one); len(out) != 1 || out[0] != one[0] {
		t.Fatalf("singleton input: %+v", out)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("duplicate key code should match")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "42P01"}) {
		t.Fatalf("unrelated code must not match")
	}
	if isUniqueViolation(nil) {
		t.Fatalf("nil error must not match")
	}
}
