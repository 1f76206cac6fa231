package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"scooter-shop/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const sqliteDriverName = "sqlite3_shop"

func init() {
	// SQLite's lower() only folds ASCII, so catalog filtering goes through a
	// Go function that handles Cyrillic as well.
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc("ulower", strings.ToLower, true); err != nil {
				return err
			}
			_, err := conn.Exec("PRAGMA foreign_keys = ON", nil)
			return err
		},
	})
	sqlx.BindDriver(sqliteDriverName, sqlx.QUESTION)
}

type dialect struct {
	name   string
	lower  string
	schema []string
}

var postgresDialect = dialect{
	name:  BackendPostgres,
	lower: "LOWER",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS products (
			id          BIGSERIAL PRIMARY KEY,
			name        TEXT NOT NULL,
			code        TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			category    TEXT NOT NULL DEFAULT '',
			price       BIGINT NOT NULL DEFAULT 0 CHECK (price >= 0),
			status      TEXT NOT NULL DEFAULT 'in_stock',
			quantity    BIGINT NOT NULL DEFAULT 0 CHECK (quantity >= 0),
			image       TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id            BIGSERIAL PRIMARY KEY,
			customer_name TEXT NOT NULL DEFAULT '',
			phone         TEXT NOT NULL DEFAULT '',
			city          TEXT NOT NULL DEFAULT '',
			comment       TEXT NOT NULL DEFAULT '',
			total_price   BIGINT NOT NULL DEFAULT 0 CHECK (total_price >= 0),
			created_at    TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id         BIGSERIAL PRIMARY KEY,
			order_id   BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id BIGINT NOT NULL DEFAULT 0,
			name       TEXT NOT NULL DEFAULT '',
			code       TEXT NOT NULL DEFAULT '',
			price      BIGINT NOT NULL DEFAULT 0 CHECK (price >= 0),
			qty        BIGINT NOT NULL CHECK (qty > 0),
			line_total BIGINT NOT NULL DEFAULT 0 CHECK (line_total >= 0)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items (order_id)`,
	},
}

var sqliteDialect = dialect{
	name:  BackendSQLite,
	lower: "ulower",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS products (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT NOT NULL,
			code        TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			category    TEXT NOT NULL DEFAULT '',
			price       INTEGER NOT NULL DEFAULT 0 CHECK (price >= 0),
			status      TEXT NOT NULL DEFAULT 'in_stock',
			quantity    INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
			image       TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_name TEXT NOT NULL DEFAULT '',
			phone         TEXT NOT NULL DEFAULT '',
			city          TEXT NOT NULL DEFAULT '',
			comment       TEXT NOT NULL DEFAULT '',
			total_price   INTEGER NOT NULL DEFAULT 0 CHECK (total_price >= 0),
			created_at    TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id   INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id INTEGER NOT NULL DEFAULT 0,
			name       TEXT NOT NULL DEFAULT '',
			code       TEXT NOT NULL DEFAULT '',
			price      INTEGER NOT NULL DEFAULT 0 CHECK (price >= 0),
			qty        INTEGER NOT NULL CHECK (qty > 0),
			line_total INTEGER NOT NULL DEFAULT 0 CHECK (line_total >= 0)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items (order_id)`,
	},
}

// SQLStore is the relational backend shared by PostgreSQL and SQLite
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
}

// NewPostgresStore connects to PostgreSQL and creates the schema
func NewPostgresStore(ctx context.Context, databaseURL string) (*SQLStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLStore(ctx, db, postgresDialect)
}

// NewSQLiteStore opens (or creates) a SQLite database. dsn is a file path or
// a "file:" URI.
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sqlx.ConnectContext(ctx, sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// single writer; also keeps in-memory databases alive
	db.SetMaxOpenConns(1)

	return newSQLStore(ctx, db, sqliteDialect)
}

func newSQLStore(ctx context.Context, db *sqlx.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate %s schema: %w", s.dialect.name, err)
		}
	}
	return nil
}

// Ping checks the database connection
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *SQLStore) GetDB() *sqlx.DB {
	return s.db
}

const productColumns = "id, name, code, description, category, price, status, quantity, image"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListProducts retrieves products matching the filter, newest first
func (s *SQLStore) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE 1=1"
	var args []interface{}

	if filter.Search != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(filter.Search)) + "%"
		query += fmt.Sprintf(` AND (%[1]s(name) LIKE ? ESCAPE '\' OR %[1]s(code) LIKE ? ESCAPE '\')`, s.dialect.lower)
		args = append(args, pattern, pattern)
	}
	if filter.Category != "" {
		query += fmt.Sprintf(" AND %s(category) = ?", s.dialect.lower)
		args = append(args, strings.ToLower(filter.Category))
	}
	query += " ORDER BY id DESC"

	products := []models.Product{}
	if err := s.db.SelectContext(ctx, &products, s.db.Rebind(query), args...); err != nil {
		return nil, storageErr("list products", err)
	}
	return products, nil
}

// GetProduct retrieves a product by ID
func (s *SQLStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		s.db.Rebind("SELECT "+productColumns+" FROM products WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get product", err)
	}
	return &product, nil
}

// CreateProduct inserts a product and assigns its ID
func (s *SQLStore) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (name, code, description, category, price, status, quantity, image)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	var id int64
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(query),
		product.Name, product.Code, product.Description, product.Category,
		product.Price, product.Status, product.Quantity, product.Image).Scan(&id)
	if err != nil {
		return storageErr("create product", err)
	}
	product.ID = id
	return nil
}

// UpdateProduct replaces every mutable field of an existing product
func (s *SQLStore) UpdateProduct(ctx context.Context, product *models.Product) error {
	query := `
		UPDATE products
		SET name = ?, code = ?, description = ?, category = ?,
		    price = ?, status = ?, quantity = ?, image = ?
		WHERE id = ?`

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query),
		product.Name, product.Code, product.Description, product.Category,
		product.Price, product.Status, product.Quantity, product.Image, product.ID)
	if err != nil {
		return storageErr("update product", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("update product", err)
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", product.ID, ErrNotFound)
	}
	return nil
}

// DeleteProduct removes a product; deleting a missing id affects zero rows
func (s *SQLStore) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM products WHERE id = ?"), id)
	if err != nil {
		return 0, storageErr("delete product", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("delete product", err)
	}
	return n, nil
}
