package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const productsCollection = "products"

// productDocument is the stored shape of a product
type productDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Price       float64            `bson:"price"`
	Stock       int                `bson:"stock"`
	Category    string             `bson:"category"`
	Code        string             `bson:"code"`
	Status      bool               `bson:"status"`
	Thumbnails  []string           `bson:"thumbnails"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func newProductDocument(p *domain.Product) productDocument {
	thumbnails := p.Thumbnails
	if thumbnails == nil {
		thumbnails = []string{}
	}
	return productDocument{
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		Category:    string(p.Category),
		Code:        p.Code,
		Status:      p.Status,
		Thumbnails:  thumbnails,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (d productDocument) toDomain() *domain.Product {
	thumbnails := d.Thumbnails
	if thumbnails == nil {
		thumbnails = []string{}
	}
	return &domain.Product{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Price:       d.Price,
		Stock:       d.Stock,
		Category:    domain.Category(d.Category),
		Code:        d.Code,
		Status:      d.Status,
		Thumbnails:  thumbnails,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type productStore struct {
	collection *mongo.Collection
}

// NewProductStore creates a MongoDB-backed ProductRepository
func NewProductStore(db *mongo.Database) repository.ProductRepository {
	return &productStore{collection: db.Collection(productsCollection)}
}

func (s *productStore) Create(ctx context.Context, product *domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Mongo keeps millisecond precision
	now := time.Now().UTC().Truncate(time.Millisecond)
	product.CreatedAt = now
	product.UpdatedAt = now

	doc := newProductDocument(product)
	doc.ID = primitive.NewObjectID()

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateCode
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	product.ID = doc.ID.Hex()
	return nil
}

func (s *productStore) Update(ctx context.Context, product *domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	objID, err := primitive.ObjectIDFromHex(product.ID)
	if err != nil {
		return repository.ErrProductNotFound
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	thumbnails := product.Thumbnails
	if thumbnails == nil {
		thumbnails = []string{}
	}

	update := bson.M{"$set": bson.M{
		"title":       product.Title,
		"description": product.Description,
		"price":       product.Price,
		"stock":       product.Stock,
		"category":    string(product.Category),
		"code":        product.Code,
		"status":      product.Status,
		"thumbnails":  thumbnails,
		"updated_at":  now,
	}}

	result, err := s.collection.UpdateByID(ctx, objID, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateCode
		}
		return fmt.Errorf("failed to update product: %w", err)
	}

	if result.MatchedCount == 0 {
		return repository.ErrProductNotFound
	}

	product.UpdatedAt = now
	return nil
}

func (s *productStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return repository.ErrProductNotFound
	}

	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if result.DeletedCount == 0 {
		return repository.ErrProductNotFound
	}

	return nil
}

func (s *productStore) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrProductNotFound
	}
	return s.findOne(ctx, bson.M{"_id": objID})
}

func (s *productStore) FindByCode(ctx context.Context, code string) (*domain.Product, error) {
	return s.findOne(ctx, bson.M{"code": code})
}

func (s *productStore) findOne(ctx context.Context, filter bson.M) (*domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var doc productDocument
	if err := s.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}

	return doc.toDomain(), nil
}

// List mirrors the SQL store: literal case-insensitive match on title or category,
// availability predicate, whitelisted sort with _id as tiebreaker
func (s *productStore) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	sortFields := map[string]string{
		"":                           "created_at",
		repository.SortFieldTitle:    "title",
		repository.SortFieldPrice:    "price",
		repository.SortFieldStock:    "stock",
		repository.SortFieldCategory: "category",
	}

	sortField, ok := sortFields[filter.SortField]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported sort field %q", filter.SortField)
	}

	direction := -1
	if filter.SortOrder == repository.SortOrderAsc {
		direction = 1
	}

	query := bson.M{}
	clauses := bson.A{}

	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
		clauses = append(clauses, bson.M{"$or": bson.A{
			bson.M{"title": pattern},
			bson.M{"category": pattern},
		}})
	}

	switch filter.Availability {
	case domain.AvailabilityAvailable:
		clauses = append(clauses, bson.M{"status": true, "stock": bson.M{"$gt": 0}})
	case domain.AvailabilityUnavailable:
		clauses = append(clauses, bson.M{"$or": bson.A{
			bson.M{"status": false},
			bson.M{"stock": bson.M{"$lte": 0}},
		}})
	}

	if len(clauses) > 0 {
		query["$and"] = clauses
	}

	total, err := s.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: sortField, Value: direction}, {Key: "_id", Value: direction}}).
		SetSkip(int64(filter.Offset)).
		SetLimit(int64(filter.Limit))

	cursor, err := s.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []productDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode products: %w", err)
	}

	products := make([]*domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.toDomain())
	}

	return products, int(total), nil
}
