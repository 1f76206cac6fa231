package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scooter-shop/config"
	"scooter-shop/internal/models"
)

var (
	// ErrNotFound is returned when a product id does not exist
	ErrNotFound = errors.New("not found")

	// ErrStorage wraps every failure of the underlying storage engine
	ErrStorage = errors.New("storage error")
)

// ProductStore owns product records
type ProductStore interface {
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error
	// DeleteProduct reports how many records were removed; a missing id is not an error
	DeleteProduct(ctx context.Context, id int64) (int64, error)
}

// OrderStore owns orders and their line items
type OrderStore interface {
	ListOrders(ctx context.Context) ([]models.Order, error)
	// CreateOrder persists the order and all of its items, or nothing at all
	CreateOrder(ctx context.Context, order *models.Order) error
}

// Store is the full capability set every backend provides
type Store interface {
	ProductStore
	OrderStore
	Ping(ctx context.Context) error
	Close() error
}

// Backend names accepted by Open
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendFile     = "file"
	BackendMongo    = "mongo"
)

// Open creates the store selected by cfg.Backend
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case BackendSQLite, "":
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case BackendPostgres:
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case BackendFile:
		return NewFileStore(cfg.DataFile)
	case BackendMongo:
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// stampOrder assigns the server-side creation time
func stampOrder(order *models.Order) {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
}

// checkOrder enforces the same constraints the relational schema declares,
// for backends without CHECK constraints.
func checkOrder(order *models.Order) error {
	if order.TotalPrice < 0 {
		return fmt.Errorf("order: %w: negative total", ErrStorage)
	}
	for i, item := range order.Items {
		if item.Qty <= 0 || item.Price < 0 || item.LineTotal < 0 {
			return fmt.Errorf("order item %d: %w: check constraint violated", i, ErrStorage)
		}
	}
	return nil
}

// demoProducts seed an empty catalog
var demoProducts = []models.Product{
	{
		Name:        "Сигнализация (пульт + блок), 4 кнопки",
		Code:        "OA00004",
		Description: "Комплект сигнализации: блок управления и пульт с 4 кнопками.",
		Price:       350,
		Category:    "электрика",
		Status:      models.ProductStatusInStock,
	},
	{
		Name:        "Держатель для телефона (брендированный)",
		Code:        "AT00005",
		Description: "Фирменный держатель для телефона, совместим с большинством рулей.",
		Price:       375,
		Category:    "аксессуары",
		Status:      models.ProductStatusInStock,
	},
	{
		Name:        "Фара большая передняя круглая (с защитой линзы)",
		Code:        "C3000008-1",
		Description: "Яркая передняя фара с защитой линзы для ночных поездок.",
		Price:       950,
		Category:    "свет",
		Status:      models.ProductStatusInStock,
	},
}

// SeedDemoProducts fills an empty catalog with demo products and returns how
// many were inserted.
func SeedDemoProducts(ctx context.Context, products ProductStore) (int, error) {
	existing, err := products.ListProducts(ctx, models.ProductFilter{})
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	for i := range demoProducts {
		p := demoProducts[i]
		if err := products.CreateProduct(ctx, &p); err != nil {
			return i, err
		}
	}
	return len(demoProducts), nil
}
