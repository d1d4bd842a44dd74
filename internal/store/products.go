package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/AbhigyanPie/product-impoter/internal/models"
)

const productColumns = "id, sku, name, description, price, quantity, active, created_at, updated_at"

// UpsertProducts writes one chunk in a single transaction keyed on sku.
// Duplicate SKUs inside the batch collapse to the last occurrence, since a
// multi-row INSERT cannot touch the same key twice. Returns how many rows
// were inserted vs updated; the counts are informational.
func (s *Store) UpsertProducts(ctx context.Context, records []models.Product) (int, int, error) {
	records = dedupeBySKU(records)
	if len(records) == 0 {
		return 0, 0, nil
	}

	skus := make([]string, len(records))
	for i, p := range records {
		skus[i] = p.SKU
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // safe no-op on commit

	existing := make(map[string]bool, len(records))
	rows, err := tx.Query(ctx, `SELECT sku FROM products WHERE sku = ANY($1)`, skus)
	if err != nil {
		return 0, 0, fmt.Errorf("query existing skus: %w", err)
	}
	for rows.Next() {
		var sku string
		if err := rows.Scan(&sku); err != nil {
			rows.Close()
			return 0, 0, fmt.Errorf("scan sku: %w", err)
		}
		existing[sku] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("iterate skus: %w", err)
	}

	var sb strings.Builder
	args := make([]any, 0, len(records)*6)
	sb.WriteString(`INSERT INTO products (sku, name, description, price, quantity, active) VALUES `)
	for i, p := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 6
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, p.SKU, p.Name, emptyToNil(p.Description), p.Price, p.Quantity, p.Active)
	}
	sb.WriteString(` ON CONFLICT (sku) DO UPDATE SET
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		price = EXCLUDED.price,
		quantity = EXCLUDED.quantity,
		active = EXCLUDED.active,
		updated_at = NOW()`)

	if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
		return 0, 0, fmt.Errorf("upsert products: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}

	updated := 0
	for _, p := range records {
		if existing[p.SKU] {
			updated++
		}
	}
	return len(records) - updated, updated, nil
}

// dedupeBySKU keeps the last occurrence of each sku, in first-seen order.
func dedupeBySKU(records []models.Product) []models.Product {
	if len(records) < 2 {
		return records
	}
	idx := make(map[string]int, len(records))
	out := make([]models.Product, 0, len(records))
	for _, p := range records {
		if at, ok := idx[p.SKU]; ok {
			out[at] = p
			continue
		}
		idx[p.SKU] = len(out)
		out = append(out, p)
	}
	return out
}

// ListProductsParams filters and paginates the catalog listing.
type ListProductsParams struct {
	Search   string
	Active   *bool
	Page     int
	PageSize int
}

// ListProducts returns one page of the catalog with a total count.
func (s *Store) ListProducts(ctx context.Context, p ListProductsParams) (models.ProductPage, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}

	where := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if p.Search != "" {
		args = append(args, "%"+p.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(sku ILIKE $%d OR name ILIKE $%d OR description ILIKE $%d)", n, n, n))
	}
	if p.Active != nil {
		args = append(args, *p.Active)
		where = append(where, fmt.Sprintf("active = $%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM products"+cond, args...).Scan(&total); err != nil {
		return models.ProductPage{}, fmt.Errorf("count products: %w", err)
	}

	args = append(args, p.PageSize, (p.Page-1)*p.PageSize)
	query := fmt.Sprintf("SELECT %s FROM products%s ORDER BY id LIMIT $%d OFFSET $%d",
		productColumns, cond, len(args)-1, len(args))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return models.ProductPage{}, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	items := make([]models.Product, 0, p.PageSize)
	for rows.Next() {
		prod, err := scanProduct(rows)
		if err != nil {
			return models.ProductPage{}, fmt.Errorf("scan product: %w", err)
		}
		items = append(items, prod)
	}
	if err := rows.Err(); err != nil {
		return models.ProductPage{}, fmt.Errorf("iterate products: %w", err)
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + p.PageSize - 1) / p.PageSize
	}
	return models.ProductPage{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize, TotalPages: totalPages}, nil
}

// GetProduct fetches a product by id.
func (s *Store) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Product{}, ErrNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// CreateProduct inserts one product. The sku is stored lowercase;
// ErrDuplicateSKU reports a unique violation.
func (s *Store) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	p.SKU = strings.ToLower(strings.TrimSpace(p.SKU))
	row := s.pool.QueryRow(ctx, `
		INSERT INTO products (sku, name, description, price, quantity, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+productColumns,
		p.SKU, p.Name, emptyToNil(p.Description), p.Price, p.Quantity, p.Active)
	created, err := scanProduct(row)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Product{}, ErrDuplicateSKU
		}
		return models.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return created, nil
}

// UpdateProductParams carries optional fields; nil leaves a field as is.
// The sku is the natural key and cannot be changed.
type UpdateProductParams struct {
	Name        *string
	Description *string
	Price       *float64
	Quantity    *int
	Active      *bool
}

// UpdateProduct applies a partial update and returns the new row.
func (s *Store) UpdateProduct(ctx context.Context, id int64, p UpdateProductParams) (models.Product, error) {
	sets := make([]string, 0, 6)
	args := []any{id}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Description != nil {
		add("description", emptyToNil(*p.Description))
	}
	if p.Price != nil {
		add("price", *p.Price)
	}
	if p.Quantity != nil {
		add("quantity", *p.Quantity)
	}
	if p.Active != nil {
		add("active", *p.Active)
	}
	if len(sets) == 0 {
		return s.GetProduct(ctx, id)
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf("UPDATE products SET %s WHERE id = $1 RETURNING %s",
		strings.Join(sets, ", "), productColumns)
	row := s.pool.QueryRow(ctx, query, args...)
	updated, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Product{}, ErrNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("update product: %w", err)
	}
	return updated, nil
}

// DeleteProduct removes one product and returns the deleted row so the
// product.deleted event can carry its last known state.
func (s *Store) DeleteProduct(ctx context.Context, id int64) (models.Product, error) {
	row := s.pool.QueryRow(ctx, "DELETE FROM products WHERE id = $1 RETURNING "+productColumns, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Product{}, ErrNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("delete product: %w", err)
	}
	return p, nil
}

// DeleteAllProducts clears the catalog and reports how many rows went.
func (s *Store) DeleteAllProducts(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products`)
	if err != nil {
		return 0, fmt.Errorf("delete products: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanProduct(row pgx.Row) (models.Product, error) {
	var p models.Product
	var desc pgtype.Text
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &desc, &p.Price, &p.Quantity, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return models.Product{}, err
	}
	if desc.Valid {
		p.Description = desc.String
	}
	return p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
