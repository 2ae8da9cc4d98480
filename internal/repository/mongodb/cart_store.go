package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const cartsCollection = "carts"

type cartLineDocument struct {
	Product  string `bson:"product"`
	Quantity int    `bson:"quantity"`
}

type cartDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	Products  []cartLineDocument `bson:"products"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func (d cartDocument) toDomain() *domain.Cart {
	lines := make([]domain.CartLine, 0, len(d.Products))
	for _, p := range d.Products {
		lines = append(lines, domain.CartLine{ProductID: p.Product, Quantity: p.Quantity})
	}
	return &domain.Cart{
		ID:        d.ID.Hex(),
		Lines:     lines,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type cartStore struct {
	collection *mongo.Collection
}

// NewCartStore creates a MongoDB-backed CartRepository
func NewCartStore(db *mongo.Database) repository.CartRepository {
	return &cartStore{collection: db.Collection(cartsCollection)}
}

func (s *cartStore) Create(ctx context.Context) (*domain.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := cartDocument{
		ID:        primitive.NewObjectID(),
		Products:  []cartLineDocument{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	return doc.toDomain(), nil
}

func (s *cartStore) FindByID(ctx context.Context, id string) (*domain.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrCartNotFound
	}

	var doc cartDocument
	if err := s.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to find cart by ID: %w", err)
	}

	return doc.toDomain(), nil
}

// AddLine increments the matching line, or pushes a new one guarded by $ne so
// two concurrent adds of the same product can never produce two lines.
// An increment that would push the line past repository.MaxLineQuantity is refused.
func (s *cartStore) AddLine(ctx context.Context, cartID, productID string, quantity int) (*domain.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	objID, err := primitive.ObjectIDFromHex(cartID)
	if err != nil {
		return nil, repository.ErrCartNotFound
	}

	// A concurrent push can land between the two writes; one retry settles it
	for attempt := 0; attempt < 2; attempt++ {
		now := time.Now().UTC().Truncate(time.Millisecond)

		cart, err := s.findOneAndUpdate(ctx,
			bson.M{"_id": objID, "products": bson.M{"$elemMatch": bson.M{
				"product":  productID,
				"quantity": bson.M{"$lte": repository.MaxLineQuantity - quantity},
			}}},
			bson.M{
				"$inc": bson.M{"products.$.quantity": quantity},
				"$set": bson.M{"updated_at": now},
			},
		)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to increment cart line: %w", err)
		}

		cart, err = s.findOneAndUpdate(ctx,
			bson.M{"_id": objID, "products.product": bson.M{"$ne": productID}},
			bson.M{
				"$push": bson.M{"products": cartLineDocument{Product: productID, Quantity: quantity}},
				"$set":  bson.M{"updated_at": now},
			},
		)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to append cart line: %w", err)
		}
	}

	if err := s.ensureExists(ctx, objID); err != nil {
		return nil, err
	}

	full, err := s.collection.CountDocuments(ctx, bson.M{"_id": objID, "products": bson.M{"$elemMatch": bson.M{
		"product":  productID,
		"quantity": bson.M{"$gt": repository.MaxLineQuantity - quantity},
	}}})
	if err != nil {
		return nil, fmt.Errorf("failed to check cart line: %w", err)
	}
	if full > 0 {
		return nil, repository.ErrQuantityOverflow
	}
	return nil, fmt.Errorf("failed to add cart line: concurrent modification")
}

func (s *cartStore) SetLineQuantity(ctx context.Context, cartID, productID string, quantity int) (*domain.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	objID, err := primitive.ObjectIDFromHex(cartID)
	if err != nil {
		return nil, repository.ErrCartNotFound
	}

	cart, err := s.findOneAndUpdate(ctx,
		bson.M{"_id": objID, "products.product": productID},
		bson.M{"$set": bson.M{
			"products.$.quantity": quantity,
			"updated_at":          time.Now().UTC().Truncate(time.Millisecond),
		}},
	)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update cart line: %w", err)
	}

	if err := s.ensureExists(ctx, objID); err != nil {
		return nil, err
	}
	return nil, repository.ErrCartLineNotFound
}

func (s *cartStore) RemoveLine(ctx context.Context, cartID, productID string) (*domain.Cart, error) {
	return s.updateCart(ctx, cartID, bson.M{
		"$pull": bson.M{"products": bson.M{"product": productID}},
	})
}

func (s *cartStore) ReplaceLines(ctx context.Context, cartID string, lines []domain.CartLine) (*domain.Cart, error) {
	products := make([]cartLineDocument, 0, len(lines))
	for _, line := range lines {
		products = append(products, cartLineDocument{Product: line.ProductID, Quantity: line.Quantity})
	}
	return s.updateCart(ctx, cartID, bson.M{
		"$set": bson.M{"products": products},
	})
}

func (s *cartStore) Clear(ctx context.Context, cartID string) (*domain.Cart, error) {
	return s.updateCart(ctx, cartID, bson.M{
		"$set": bson.M{"products": []cartLineDocument{}},
	})
}

// updateCart applies update to the cart and stamps updated_at in the same write
func (s *cartStore) updateCart(ctx context.Context, cartID string, update bson.M) (*domain.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	objID, err := primitive.ObjectIDFromHex(cartID)
	if err != nil {
		return nil, repository.ErrCartNotFound
	}

	set, _ := update["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
	}
	set["updated_at"] = time.Now().UTC().Truncate(time.Millisecond)
	update["$set"] = set

	cart, err := s.findOneAndUpdate(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to update cart: %w", err)
	}

	return cart, nil
}

func (s *cartStore) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*domain.Cart, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc cartDocument
	if err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (s *cartStore) ensureExists(ctx context.Context, objID primitive.ObjectID) error {
	count, err := s.collection.CountDocuments(ctx, bson.M{"_id": objID}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("failed to check cart: %w", err)
	}
	if count == 0 {
		return repository.ErrCartNotFound
	}
	return nil
}
