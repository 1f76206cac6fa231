package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"scooter-shop/internal/models"
)

// fileData is the on-disk layout of the JSON-file backend
type fileData struct {
	Products []models.Product `json:"products"`
	Orders   []models.Order   `json:"orders"`
	Seq      fileSeq          `json:"seq"`
}

// fileSeq holds the last issued ids so that deleted ids are never reused
type fileSeq struct {
	Product int64 `json:"product"`
	Order   int64 `json:"order"`
	Item    int64 `json:"item"`
}

// FileStore keeps the whole shop in one JSON document. Every operation reads
// the file and every mutation rewrites it, serialized by mu.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileStore creates the data file if it does not exist yet
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		if err := s.save(&fileData{}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat data file: %w", err)
	}

	return s, nil
}

func (s *FileStore) load() (*fileData, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, storageErr("read data file", err)
	}

	var data fileData
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, storageErr("decode data file", err)
		}
	}

	// files written without sequence counters start after the highest id
	for _, p := range data.Products {
		data.Seq.Product = max(data.Seq.Product, p.ID)
	}
	for _, o := range data.Orders {
		data.Seq.Order = max(data.Seq.Order, o.ID)
		for _, item := range o.Items {
			data.Seq.Item = max(data.Seq.Item, item.ID)
		}
	}
	return &data, nil
}

// save writes to a temp file and renames it over the data file
func (s *FileStore) save(data *fileData) error {
	if data.Products == nil {
		data.Products = []models.Product{}
	}
	if data.Orders == nil {
		data.Orders = []models.Order{}
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return storageErr("encode data file", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return storageErr("write data file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return storageErr("write data file", err)
	}
	if err := tmp.Close(); err != nil {
		return storageErr("write data file", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return storageErr("replace data file", err)
	}
	return nil
}

// Ping checks that the data file is readable
func (s *FileStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := s.load()
	return err
}

// Close is a no-op; the file is not held open
func (s *FileStore) Close() error {
	return nil
}

// ListProducts returns matching products in insertion order
func (s *FileStore) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}

	products := []models.Product{}
	for _, p := range data.Products {
		if filter.Matches(p) {
			products = append(products, p)
		}
	}
	return products, nil
}

// GetProduct retrieves a product by ID
func (s *FileStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}

	for _, p := range data.Products {
		if p.ID == id {
			product := p
			return &product, nil
		}
	}
	return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
}

// CreateProduct appends a product with the next id
func (s *FileStore) CreateProduct(ctx context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}

	data.Seq.Product++
	created := *product
	created.ID = data.Seq.Product
	data.Products = append(data.Products, created)

	if err := s.save(data); err != nil {
		return err
	}
	product.ID = created.ID
	return nil
}

// UpdateProduct replaces the stored product with the same id
func (s *FileStore) UpdateProduct(ctx context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}

	for i := range data.Products {
		if data.Products[i].ID == product.ID {
			data.Products[i] = *product
			return s.save(data)
		}
	}
	return fmt.Errorf("product %d: %w", product.ID, ErrNotFound)
}

// DeleteProduct removes a product if present
func (s *FileStore) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return 0, err
	}

	kept := data.Products[:0]
	var removed int64
	for _, p := range data.Products {
		if p.ID == id {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	if removed == 0 {
		return 0, nil
	}

	data.Products = kept
	if err := s.save(data); err != nil {
		return 0, err
	}
	return removed, nil
}

// CreateOrder validates every item first and then writes the order in a
// single file replacement, so a bad item leaves no trace.
func (s *FileStore) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := checkOrder(order); err != nil {
		return err
	}
	stampOrder(order)

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}

	data.Seq.Order++
	created := *order
	created.ID = data.Seq.Order
	created.Items = make([]models.OrderItem, len(order.Items))
	for i, item := range order.Items {
		data.Seq.Item++
		item.ID = data.Seq.Item
		item.OrderID = created.ID
		created.Items[i] = item
	}
	data.Orders = append(data.Orders, created)

	if err := s.save(data); err != nil {
		return err
	}
	*order = created
	return nil
}

// ListOrders returns every order, newest first
func (s *FileStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}

	orders := append([]models.Order{}, data.Orders...)
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
	for i := range orders {
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderItem{}
		}
	}
	return orders, nil
}
