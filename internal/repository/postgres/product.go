// Package postgres stores products in PostgreSQL. The full aggregate is kept
// as a JSONB snapshot next to the columns that filters and sorts use.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/domain/product"
	"github.com/utafrali/commercecore/internal/repository"
	spec "github.com/utafrali/commercecore/internal/specification"
	"github.com/utafrali/commercecore/pkg/database"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
	"github.com/utafrali/commercecore/pkg/pagination"
)

const productEntity = "product"

var _ repository.ProductRepository = (*ProductRepository)(nil)

var productColumns = columns{
	product.FieldStatus:      {expr: "status", kind: colText},
	product.FieldHandle:      {expr: "handle", kind: colText},
	product.FieldTitle:       {expr: "title", kind: colText},
	product.FieldVendor:      {expr: "vendor", kind: colFoldedText},
	product.FieldProductType: {expr: "product_type", kind: colText},
	product.FieldCurrency:    {expr: "currency", kind: colText},
	product.FieldCategoryIDs: {expr: "category_ids", kind: colArray},
	product.FieldTags:        {expr: "tags", kind: colArray},
	product.FieldMinPrice:    {expr: "min_price", kind: colNumber},
	product.FieldMaxPrice:    {expr: "max_price", kind: colNumber},
	product.FieldCreatedAt:   {expr: "created_at", kind: colTime},
	product.FieldUpdatedAt:   {expr: "updated_at", kind: colTime},
	product.FieldPublishedAt: {expr: "published_at", kind: colTime},
}

var productSortColumns = map[string]string{
	product.FieldTitle:     "lower(title)",
	product.FieldHandle:    "handle",
	product.FieldCreatedAt: "created_at",
	product.FieldUpdatedAt: "updated_at",
	product.FieldMinPrice:  "COALESCE(min_price, 0)",
	"price":                "COALESCE(min_price, 0)",
}

const selectProduct = `SELECT data, version FROM products`

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
	opts []product.Option
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
// opts are applied to every restored product.
func NewProductRepository(pool database.DBTX, opts ...product.Option) *ProductRepository {
	return &ProductRepository{pool: pool, opts: opts}
}

// FindByID retrieves a product by its ID.
func (r *ProductRepository) FindByID(ctx context.Context, id identity.ProductID) (*product.Product, error) {
	p, err := r.scanOne(ctx, selectProduct+` WHERE id = $1`, id.String())
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound(productEntity, id.String())
	}
	return p, err
}

// FindByHandle retrieves a product by its unique handle.
func (r *ProductRepository) FindByHandle(ctx context.Context, handle string) (*product.Product, error) {
	p, err := r.scanOne(ctx, selectProduct+` WHERE handle = $1`, handle)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound(productEntity, handle)
	}
	return p, err
}

// FindByIDs returns the products found, in the order of ids. Missing ids are
// skipped.
func (r *ProductRepository) FindByIDs(ctx context.Context, ids []identity.ProductID) ([]*product.Product, error) {
	if len(ids) == 0 {
		return []*product.Product{}, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	found, err := r.query(ctx, selectProduct+` WHERE id = ANY($1)`, raw)
	if err != nil {
		return nil, err
	}
	byID := make(map[identity.ProductID]*product.Product, len(found))
	for _, p := range found {
		byID[p.ID()] = p
	}
	out := make([]*product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Save inserts a new product or updates an existing one, guarded by its version.
func (r *ProductRepository) Save(ctx context.Context, p *product.Product) error {
	next, err := r.save(ctx, r.pool, p)
	if err != nil {
		return err
	}
	p.SetVersion(next)
	return nil
}

// SaveMany saves all products in one transaction. Nothing is written, and no
// version advances, when any of them fails.
func (r *ProductRepository) SaveMany(ctx context.Context, products []*product.Product) error {
	if len(products) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	versions := make([]int, len(products))
	for i, p := range products {
		next, err := r.save(ctx, tx, p)
		if err != nil {
			return err
		}
		versions[i] = next
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	for i, p := range products {
		p.SetVersion(versions[i])
	}
	return nil
}

// save writes p and returns its new version.
func (r *ProductRepository) save(ctx context.Context, q querier, p *product.Product) (int, error) {
	snap := p.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("marshal product: %w", err)
	}

	var minPrice, maxPrice *int64
	if pr, ok := p.PriceRange(); ok {
		lo, hi := pr.Min().Amount(), pr.Max().Amount()
		minPrice, maxPrice = &lo, &hi
	}
	var publishedAt *time.Time
	if at, ok := p.PublishedAt(); ok {
		publishedAt = &at
	}
	categoryIDs := snap.CategoryIDs
	if categoryIDs == nil {
		categoryIDs = []string{}
	}
	tags := snap.Tags
	if tags == nil {
		tags = []string{}
	}

	current := p.Version()
	next := current + 1

	if current == 0 {
		query := `
			INSERT INTO products (
				id, handle, title, vendor, product_type, status, currency,
				min_price, max_price, category_ids, tags, data, version,
				created_at, updated_at, published_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

		_, err = q.Exec(ctx, query,
			snap.ID, snap.Handle, snap.Title, snap.Vendor, snap.ProductType, string(snap.Status), snap.Currency,
			minPrice, maxPrice, categoryIDs, tags, data, next,
			snap.CreatedAt, snap.UpdatedAt, publishedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				if strings.Contains(err.Error(), "products_handle_key") {
					return 0, apperrors.AlreadyExists(productEntity, "handle", snap.Handle)
				}
				actual, verr := r.storedVersion(ctx, q, snap.ID)
				if verr != nil {
					return 0, verr
				}
				return 0, apperrors.Concurrency(productEntity, snap.ID, current, actual)
			}
			return 0, fmt.Errorf("insert product: %w", err)
		}
		return next, nil
	}

	query := `
		UPDATE products SET
			handle = $2, title = $3, vendor = $4, product_type = $5, status = $6, currency = $7,
			min_price = $8, max_price = $9, category_ids = $10, tags = $11, data = $12,
			version = $13, updated_at = $14, published_at = $15
		WHERE id = $1 AND version = $16`

	tag, err := q.Exec(ctx, query,
		snap.ID, snap.Handle, snap.Title, snap.Vendor, snap.ProductType, string(snap.Status), snap.Currency,
		minPrice, maxPrice, categoryIDs, tags, data,
		next, snap.UpdatedAt, publishedAt, current,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperrors.AlreadyExists(productEntity, "handle", snap.Handle)
		}
		return 0, fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		actual, err := r.storedVersion(ctx, q, snap.ID)
		if err != nil {
			return 0, err
		}
		if actual == 0 {
			return 0, apperrors.NotFound(productEntity, snap.ID)
		}
		return 0, apperrors.Concurrency(productEntity, snap.ID, current, actual)
	}
	return next, nil
}

// storedVersion returns the persisted version of id, zero when absent.
func (r *ProductRepository) storedVersion(ctx context.Context, q querier, id string) (int, error) {
	var version int
	err := q.QueryRow(ctx, `SELECT version FROM products WHERE id = $1`, id).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("read product version: %w", err)
	}
	return version, nil
}

// Delete removes a product by ID.
func (r *ProductRepository) Delete(ctx context.Context, id identity.ProductID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(productEntity, id.String())
	}
	return nil
}

// DeleteMany removes the listed products and reports how many existed.
func (r *ProductRepository) DeleteMany(ctx context.Context, ids []identity.ProductID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = ANY($1)`, raw)
	if err != nil {
		return 0, fmt.Errorf("delete products: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Exists reports whether a product with id is stored.
func (r *ProductRepository) Exists(ctx context.Context, id identity.ProductID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, id.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check product exists: %w", err)
	}
	return exists, nil
}

// Count returns the number of stored products.
func (r *ProductRepository) Count(ctx context.Context) (int, error) {
	return r.count(ctx, "TRUE", nil)
}

// Find returns the products matching s, oldest first.
func (r *ProductRepository) Find(ctx context.Context, s spec.Spec[*product.Product]) ([]*product.Product, error) {
	where, args, err := translate(productColumns, s.ToQuery())
	if errors.Is(err, errUntranslatable) {
		all, err := r.query(ctx, selectProduct+` ORDER BY created_at ASC, id ASC`)
		if err != nil {
			return nil, err
		}
		return s.Filter(all), nil
	}
	if err != nil {
		return nil, err
	}
	return r.query(ctx, selectProduct+` WHERE `+where+` ORDER BY created_at ASC, id ASC`, args...)
}

// FindOne returns the oldest product matching s.
func (r *ProductRepository) FindOne(ctx context.Context, s spec.Spec[*product.Product]) (*product.Product, bool, error) {
	found, err := r.Find(ctx, s)
	if err != nil || len(found) == 0 {
		return nil, false, err
	}
	return found[0], true, nil
}

// FindPaginated returns one page of the products matching s, oldest first.
func (r *ProductRepository) FindPaginated(ctx context.Context, s spec.Spec[*product.Product], params pagination.Params) (repository.PaginatedResult[*product.Product], error) {
	if _, err := pagination.NewParams(params.Page, params.Limit); err != nil {
		return pagination.Result[*product.Product]{}, err
	}

	where, args, err := translate(productColumns, s.ToQuery())
	if errors.Is(err, errUntranslatable) {
		matched, err := r.Find(ctx, s)
		if err != nil {
			return pagination.Result[*product.Product]{}, err
		}
		return pagination.Paginate(matched, params), nil
	}
	if err != nil {
		return pagination.Result[*product.Product]{}, err
	}

	query := fmt.Sprintf(`SELECT data, version, count(*) OVER() AS total_count FROM products WHERE %s
		ORDER BY created_at ASC, id ASC LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)

	rows, err := r.pool.Query(ctx, query, append(args, params.Limit, params.Offset())...)
	if err != nil {
		return pagination.Result[*product.Product]{}, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var (
		items []*product.Product
		total int
	)
	for rows.Next() {
		var (
			data    []byte
			version int
		)
		if err := rows.Scan(&data, &version, &total); err != nil {
			return pagination.Result[*product.Product]{}, fmt.Errorf("scan product row: %w", err)
		}
		p, err := r.decode(data, version)
		if err != nil {
			return pagination.Result[*product.Product]{}, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return pagination.Result[*product.Product]{}, fmt.Errorf("iterate product rows: %w", err)
	}

	// A page past the end carries no window total.
	if len(items) == 0 && params.Offset() > 0 {
		total, err = r.count(ctx, where, args)
		if err != nil {
			return pagination.Result[*product.Product]{}, err
		}
	}
	return pagination.NewResult(items, total, params), nil
}

// FindByQuery runs q. Sorting and windowing happen in SQL when every part of
// the query translates, in memory otherwise.
func (r *ProductRepository) FindByQuery(ctx context.Context, q spec.Query[*product.Product]) ([]*product.Product, error) {
	where, args, err := translate(productColumns, q.Filter())
	if err != nil && !errors.Is(err, errUntranslatable) {
		return nil, err
	}
	order, sortable := orderBy(productSortColumns, q.Sorts())
	if err != nil || !sortable {
		all, err := r.query(ctx, selectProduct+` ORDER BY created_at ASC, id ASC`)
		if err != nil {
			return nil, err
		}
		return q.Apply(all, product.Sorters())
	}

	query := selectProduct + ` WHERE ` + where + ` ORDER BY ` + order
	if q.Limit() > 0 {
		args = append(args, q.Limit())
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset() > 0 {
		args = append(args, q.Offset())
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return r.query(ctx, query, args...)
}

// CountMatching returns the number of products matching s.
func (r *ProductRepository) CountMatching(ctx context.Context, s spec.Spec[*product.Product]) (int, error) {
	where, args, err := translate(productColumns, s.ToQuery())
	if errors.Is(err, errUntranslatable) {
		matched, err := r.Find(ctx, s)
		if err != nil {
			return 0, err
		}
		return len(matched), nil
	}
	if err != nil {
		return 0, err
	}
	return r.count(ctx, where, args)
}

func (r *ProductRepository) count(ctx context.Context, where string, args []any) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM products WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (r *ProductRepository) scanOne(ctx context.Context, query string, args ...any) (*product.Product, error) {
	var (
		data    []byte
		version int
	)
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&data, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return r.decode(data, version)
}

func (r *ProductRepository) query(ctx context.Context, query string, args ...any) ([]*product.Product, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := []*product.Product{}
	for rows.Next() {
		var (
			data    []byte
			version int
		)
		if err := rows.Scan(&data, &version); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		p, err := r.decode(data, version)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return out, nil
}

func (r *ProductRepository) decode(data []byte, version int) (*product.Product, error) {
	var snap product.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	p, err := product.Restore(snap, r.opts...)
	if err != nil {
		return nil, fmt.Errorf("restore product %s: %w", snap.ID, err)
	}
	p.SetVersion(version)
	return p, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
