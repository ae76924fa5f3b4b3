package repository

import (
	"context"

	"github.com/example/khanpan/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoMenuStore reads dishes from the menus collection in insertion order.
type MongoMenuStore struct {
	collection *mongo.Collection
}

func (s *MongoMenuStore) Menu(ctx context.Context) ([]models.MenuItem, error) {
	cursor, err := s.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var items []models.MenuItem
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return models.Indexed(items), nil
}

// Replace swaps the whole menu for items. Used by the operator CLI.
func (s *MongoMenuStore) Replace(ctx context.Context, items []models.MenuItem) error {
	if _, err := s.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	docs := make([]interface{}, len(items))
	for i, item := range items {
		docs[i] = item
	}
	_, err := s.collection.InsertMany(ctx, docs)
	return err
}
