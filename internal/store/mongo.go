package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"scooter-shop/internal/models"
)

const (
	counterProducts   = "products"
	counterOrders     = "orders"
	counterOrderItems = "order_items"
)

// MongoStore keeps products and orders in MongoDB. Order items are embedded
// in the order document, which makes order creation a single atomic write.
type MongoStore struct {
	client   *mongo.Client
	products *mongo.Collection
	orders   *mongo.Collection
	counters *mongo.Collection
}

// NewMongoStore connects to MongoDB and pings the server
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	return &MongoStore{
		client:   client,
		products: db.Collection("products"),
		orders:   db.Collection("orders"),
		counters: db.Collection("counters"),
	}, nil
}

// Ping checks the server connection
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// nextID increments and returns a named sequence
func (s *MongoStore) nextID(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, storageErr("next "+name+" id", err)
	}
	return counter.Seq, nil
}

// ListProducts returns matching products in insertion order
func (s *MongoStore) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	query := bson.M{}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"code": pattern},
		}
	}
	if filter.Category != "" {
		query["category"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(filter.Category) + "$", Options: "i"}
	}

	cursor, err := s.products.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, storageErr("list products", err)
	}
	defer cursor.Close(ctx)

	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, storageErr("decode products", err)
	}
	return products, nil
}

// GetProduct retrieves a product by ID
func (s *MongoStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get product", err)
	}
	return &product, nil
}

// CreateProduct inserts a product with the next sequence id
func (s *MongoStore) CreateProduct(ctx context.Context, product *models.Product) error {
	id, err := s.nextID(ctx, counterProducts)
	if err != nil {
		return err
	}

	created := *product
	created.ID = id
	if _, err := s.products.InsertOne(ctx, created); err != nil {
		return storageErr("create product", err)
	}
	product.ID = id
	return nil
}

// UpdateProduct replaces the stored document
func (s *MongoStore) UpdateProduct(ctx context.Context, product *models.Product) error {
	result, err := s.products.ReplaceOne(ctx, bson.M{"_id": product.ID}, product)
	if err != nil {
		return storageErr("update product", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("product %d: %w", product.ID, ErrNotFound)
	}
	return nil
}

// DeleteProduct removes a product if present
func (s *MongoStore) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	result, err := s.products.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, storageErr("delete product", err)
	}
	return result.DeletedCount, nil
}

// CreateOrder writes the order with embedded items as one document
func (s *MongoStore) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := checkOrder(order); err != nil {
		return err
	}
	stampOrder(order)

	orderID, err := s.nextID(ctx, counterOrders)
	if err != nil {
		return err
	}

	created := *order
	created.ID = orderID
	created.Items = make([]models.OrderItem, len(order.Items))
	for i, item := range order.Items {
		itemID, err := s.nextID(ctx, counterOrderItems)
		if err != nil {
			return err
		}
		item.ID = itemID
		item.OrderID = orderID
		created.Items[i] = item
	}

	if _, err := s.orders.InsertOne(ctx, created); err != nil {
		return storageErr("create order", err)
	}
	*order = created
	return nil
}

// ListOrders returns every order, newest first
func (s *MongoStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.orders.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, storageErr("list orders", err)
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, storageErr("decode orders", err)
	}
	for i := range orders {
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderItem{}
		}
	}
	return orders, nil
}
