package importer

import (
	"strconv"
	"strings"

	"github.com/AbhigyanPie/product-impoter/internal/models"
)

// Column names recognized in upload headers. Matching is case-insensitive
// after trimming; unknown columns are ignored.
const (
	colSKU         = "sku"
	colName        = "name"
	colDescription = "description"
	colPrice       = "price"
	colQuantity    = "quantity"
)

// NormalizeRow turns one raw row into a product ready for upsert. sku and
// name must be non-empty after trimming; sku is lowercased so the natural
// key is case-insensitive. price and quantity default to zero when absent,
// unparsable, or negative. Every imported product is active.
func NormalizeRow(rowNumber int, fields map[string]string) (models.Product, error) {
	sku := strings.ToLower(strings.TrimSpace(fields[colSKU]))
	if sku == "" {
		return models.Product{}, models.RowValidationError{RowNumber: rowNumber, Field: colSKU, Message: "missing required field"}
	}
	name := strings.TrimSpace(fields[colName])
	if name == "" {
		return models.Product{}, models.RowValidationError{RowNumber: rowNumber, Field: colName, Message: "missing required field"}
	}
	return models.Product{
		SKU:         sku,
		Name:        name,
		Description: strings.TrimSpace(fields[colDescription]),
		Price:       parsePrice(fields[colPrice]),
		Quantity:    parseQuantity(fields[colQuantity]),
		Active:      true,
	}, nil
}

func parsePrice(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

func parseQuantity(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
