package importer

import (
	"errors"
	"testing"

	"github.com/AbhigyanPie/product-impoter/internal/models"
)

func TestNormalizeRow(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		want   models.Product
	}{
		{
			name:   "complete row, trimmed and lowercased sku",
			fields: map[string]string{"sku": " ABC-1 ", "name": " Widget ", "description": " blue ", "price": "9.99", "quantity": "5"},
			want:   models.Product{SKU: "abc-1", Name: "Widget", Description: "blue", Price: 9.99, Quantity: 5, Active: true},
		},
		{
			name:   "negative numerics default to zero",
			fields: map[string]string{"sku": "a", "name": "A", "price": "-3", "quantity": "-2"},
			want:   models.Product{SKU: "a", Name: "A", Active: true},
		},
		{
			name:   "unparsable numerics default to zero",
			fields: map[string]string{"sku": "a", "name": "A", "price": "free", "quantity": "many"},
			want:   models.Product{SKU: "a", Name: "A", Active: true},
		},
		{
			name:   "optional columns absent",
			fields: map[string]string{"sku": "a", "name": "A"},
			want:   models.Product{SKU: "a", Name: "A", Active: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRow(2, tt.fields)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeRowRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		field  string
	}{
		{"missing sku", map[string]string{"name": "A"}, "sku"},
		{"blank sku", map[string]string{"sku": "   ", "name": "A"}, "sku"},
		{"missing name", map[string]string{"sku": "a"}, "name"},
		{"blank name", map[string]string{"sku": "a", "name": " "}, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeRow(7, tt.fields)
			var rve models.RowValidationError
			if !errors.As(err, &rve) {
				t.Fatalf("expected a row validation error, got %v", err)
			}
			if rve.RowNumber != 7 || rve.Field != tt.field {
				t.Fatalf("unexpected error detail: %+v", rve)
			}
		})
	}
}
