package repository

import (
	"context"
	"errors"
	"time"

	"github.com/example/khanpan/pkg/ledger"
	"github.com/example/khanpan/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// newestFirst sorts by creation time, then by _id so that orders created in
// the same millisecond come back in reverse write order.
var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

type orderDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user"`
	Items     []models.OrderItem `bson:"items"`
	Total     float64            `bson:"total"`
	CreatedAt time.Time          `bson:"createdAt"`
	Status    string             `bson:"status"`
}

func (d *orderDocument) toModel() *models.Order {
	return &models.Order{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		Items:     d.Items,
		Total:     d.Total,
		CreatedAt: d.CreatedAt.UTC(),
		Status:    models.OrderStatus(d.Status),
	}
}

// MongoOrderStore implements ledger.Store on the orders collection.
type MongoOrderStore struct {
	collection *mongo.Collection
}

var _ ledger.Store = (*MongoOrderStore)(nil)

func (s *MongoOrderStore) Insert(ctx context.Context, order *models.Order) error {
	doc := orderDocument{
		ID:        primitive.NewObjectID(),
		UserID:    order.UserID,
		Items:     order.Items,
		Total:     order.Total,
		CreatedAt: order.CreatedAt,
		Status:    string(order.Status),
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return err
	}
	order.ID = doc.ID.Hex()
	return nil
}

func (s *MongoOrderStore) Get(ctx context.Context, orderID string) (*models.Order, error) {
	id, err := objectID(orderID)
	if err != nil {
		return nil, err
	}

	var doc orderDocument
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrOrderNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MongoOrderStore) FindByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"user": userID}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []orderDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	orders := make([]*models.Order, len(docs))
	for i := range docs {
		orders[i] = docs[i].toModel()
	}
	return orders, nil
}

func (s *MongoOrderStore) FindLatestSince(ctx context.Context, userID string, since time.Time) (*models.Order, error) {
	filter := bson.M{
		"user":      userID,
		"createdAt": bson.M{"$gte": since},
	}

	var doc orderDocument
	err := s.collection.FindOne(ctx, filter, options.FindOne().SetSort(newestFirst)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MongoOrderStore) Replace(ctx context.Context, orderID string, items []models.OrderItem, total float64) (*models.Order, error) {
	order, err := s.findAndSet(ctx, orderID, bson.M{"status": string(models.StatusInProgress)}, bson.M{"items": items, "total": total})
	if errors.Is(err, ledger.ErrOrderNotFound) {
		return nil, s.whyNotReplaced(ctx, orderID)
	}
	return order, err
}

// whyNotReplaced tells a missing order from a delivered one after a
// conditional write matched nothing.
func (s *MongoOrderStore) whyNotReplaced(ctx context.Context, orderID string) error {
	if _, err := s.Get(ctx, orderID); err != nil {
		return err
	}
	return ledger.ErrOrderDelivered
}

func (s *MongoOrderStore) SetStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	return s.findAndSet(ctx, orderID, nil, bson.M{"status": string(status)})
}

func (s *MongoOrderStore) Delete(ctx context.Context, orderID string) error {
	id, err := objectID(orderID)
	if err != nil {
		return err
	}
	_, err = s.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *MongoOrderStore) findAndSet(ctx context.Context, orderID string, where, set bson.M) (*models.Order, error) {
	id, err := objectID(orderID)
	if err != nil {
		return nil, err
	}
	filter := bson.M{"_id": id}
	for k, v := range where {
		filter[k] = v
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc orderDocument
	err = s.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrOrderNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func objectID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, ledger.ErrInvalidOrderID
	}
	return id, nil
}
