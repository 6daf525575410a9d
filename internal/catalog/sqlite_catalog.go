package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const productColumns = `
	p.id, p.title, p.description, p.price, p.image_url, p.category, p.seller_id,
	p.view_count, p.is_featured, p.condition, p.status, p.created_at,
	s.username, s.avatar_url, s.rating, s.is_verified
`

// SQLiteCatalog serves products from a local SQLite database.
type SQLiteCatalog struct {
	db *sql.DB
}

func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func (c *SQLiteCatalog) RunMigrations() error {
	driver, err := sqlite.WithInstance(c.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

func (c *SQLiteCatalog) Get(ctx context.Context, id string) (*Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products p
		JOIN profiles s ON s.id = p.seller_id
		WHERE p.id = $1
	`

	p, err := scanProduct(c.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

func (c *SQLiteCatalog) Featured(ctx context.Context, limit int) ([]*Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products p
		JOIN profiles s ON s.id = p.seller_id
		WHERE p.status = 'active' AND p.is_featured = 1
		ORDER BY p.created_at DESC, p.id
		LIMIT $1
	`
	return c.queryProducts(ctx, query, limit)
}

func (c *SQLiteCatalog) Search(ctx context.Context, q Query) ([]*Product, error) {
	var (
		where = []string{"p.status = 'active'"}
		args  []any
	)

	if text := strings.TrimSpace(q.Text); text != "" {
		pattern := "%" + text + "%"
		args = append(args, pattern, pattern, pattern)
		n := len(args)
		where = append(where, fmt.Sprintf("(p.title LIKE $%d OR p.description LIKE $%d OR p.category LIKE $%d)", n-2, n-1, n))
	}
	if q.Category != "" && q.Category != "all" {
		args = append(args, q.Category)
		where = append(where, fmt.Sprintf("p.category = $%d", len(args)))
	}

	query := `SELECT ` + productColumns + `
		FROM products p
		JOIN profiles s ON s.id = p.seller_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ` + orderBy(q.Sort)

	return c.queryProducts(ctx, query, args...)
}

func orderBy(sort string) string {
	switch sort {
	case SortPriceLow:
		return "CAST(p.price AS REAL) ASC, p.id"
	case SortPriceHigh:
		return "CAST(p.price AS REAL) DESC, p.id"
	case SortPopular:
		return "p.view_count DESC, p.id"
	default:
		return "p.created_at DESC, p.id"
	}
}

func (c *SQLiteCatalog) Categories(ctx context.Context) ([]Category, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT slug, name FROM categories
		WHERE is_active = 1
		ORDER BY sort_order
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var cat Category
		if err := rows.Scan(&cat.Slug, &cat.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return categories, nil
}

func (c *SQLiteCatalog) RecordView(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `UPDATE products SET view_count = view_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to record view: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record view: %w", err)
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (c *SQLiteCatalog) queryProducts(ctx context.Context, query string, args ...any) ([]*Product, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*Product, error) {
	p := &Product{}
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.Price,
		&p.ImageURL,
		&p.Category,
		&p.SellerID,
		&p.ViewCount,
		&p.IsFeatured,
		&p.Condition,
		&p.Status,
		&p.CreatedAt,
		&p.Seller.Username,
		&p.Seller.AvatarURL,
		&p.Seller.Rating,
		&p.Seller.IsVerified,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
