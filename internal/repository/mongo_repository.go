package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/fjod/go_cart/storefront-cart/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoRepository keeps one document per cart holding both the items and the
// selection map, so a single ReplaceOne is the atomic write.
type mongoRepository struct {
	carts    *mongo.Collection
	sessions *mongo.Collection
}

func (m mongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	res := m.carts.FindOne(ctx, bson.M{"_id": userID})
	if err := res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	var cart domain.Cart
	if err := res.Decode(&cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart %q: %w: %v", userID, storage.ErrCorrupted, err)
	}
	if err := checkItems(&cart); err != nil {
		return nil, err
	}

	cart.Normalize()
	return &cart, nil
}

// SaveCart keeps the UpdatedAt the service stamped on the cart.
func (m mongoRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	filter := bson.M{"_id": cart.UserID}
	opts := options.Replace().SetUpsert(true)

	_, err := m.carts.ReplaceOne(ctx, filter, cart, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}

	return nil
}

func (m mongoRepository) DeleteCart(ctx context.Context, userID string) error {
	filter := bson.M{"_id": userID}

	_, err := m.carts.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	return nil
}

func (m mongoRepository) GetSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	var session domain.CheckoutSession

	err := m.sessions.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}

	return &session, nil
}

func (m mongoRepository) SaveSession(ctx context.Context, session *domain.CheckoutSession) error {
	opts := options.Replace().SetUpsert(true)

	_, err := m.sessions.ReplaceOne(ctx, bson.M{"_id": session.ID}, session, opts)
	if err != nil {
		return fmt.Errorf("failed to save checkout session: %w", err)
	}

	return nil
}

func (m mongoRepository) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := m.sessions.DeleteOne(ctx, bson.M{"_id": sessionID})
	if err != nil {
		return fmt.Errorf("failed to delete checkout session: %w", err)
	}

	return nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	cartIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}
	if _, err := m.carts.Indexes().CreateMany(ctx, cartIndexes); err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}

	sessionIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(SessionRetention / time.Second)),
		},
	}
	if _, err := m.sessions.Indexes().CreateMany(ctx, sessionIndexes); err != nil {
		return fmt.Errorf("failed to create session indexes: %w", err)
	}

	return nil
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		carts:    db.Collection("carts"),
		sessions: db.Collection("checkout_sessions"),
	}
}

// EnsureMongoIndexes creates the TTL and lookup indexes when repo is mongo-backed.
func EnsureMongoIndexes(ctx context.Context, repo CartRepository) error {
	m, ok := repo.(*mongoRepository)
	if !ok {
		return nil
	}
	return m.CreateIndexes(ctx)
}
