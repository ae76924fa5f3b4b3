package repository

import (
	"context"
	"sync"
	"time"

	"github.com/example/khanpan/pkg/config"
	"github.com/example/khanpan/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	ordersCollection = "orders"
	usersCollection  = "users"
	menusCollection  = "menus"
)

type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig
}

func NewMongoRepository(cfg *config.MongoDBConfig) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}

	return &MongoRepository{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}, nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the order and user queries rely on.
func (m *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := m.database.Collection(ordersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return err
	}
	_, err = m.database.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// Orders returns the order store backed by the orders collection.
func (m *MongoRepository) Orders() *MongoOrderStore {
	return &MongoOrderStore{collection: m.database.Collection(ordersCollection)}
}

// Users returns the user store backed by the users collection.
func (m *MongoRepository) Users() *MongoUserStore {
	return &MongoUserStore{collection: m.database.Collection(usersCollection)}
}

// Menu returns the read-only menu source.
func (m *MongoRepository) Menu() *MongoMenuStore {
	return &MongoMenuStore{collection: m.database.Collection(menusCollection)}
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Service   string             `bson:"service"`
	Action    string             `bson:"action"`
	EntityID  string             `bson:"entity_id"`
	Data      bson.M             `bson:"data"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (m *MongoRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	collection := m.database.Collection(m.config.Collection)
	log.CreatedAt = time.Now()
	_, err := collection.InsertOne(ctx, log)
	return err
}

func (m *MongoRepository) GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*AuditLog, error) {
	collection := m.database.Collection(m.config.Collection)

	filter := bson.M{"entity_id": entityID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []*AuditLog
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	return logs, nil
}

// AuditRecorder writes every ledger change to the audit collection in the
// background. It implements ledger.Recorder.
type AuditRecorder struct {
	repo    *MongoRepository
	service string
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewAuditRecorder(repo *MongoRepository, service string, logger *zap.Logger) *AuditRecorder {
	return &AuditRecorder{repo: repo, service: service, logger: logger.Named("audit")}
}

func (a *AuditRecorder) Record(_ context.Context, action string, order *models.Order) {
	entry := &AuditLog{
		Service:  a.service,
		Action:   action,
		EntityID: order.ID,
		Data: bson.M{
			"user":   order.UserID,
			"total":  order.Total,
			"status": string(order.Status),
		},
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.repo.CreateAuditLog(ctx, entry); err != nil {
			a.logger.Warn("Failed to write audit log",
				zap.String("action", action),
				zap.String("order_id", entry.EntityID),
				zap.Error(err))
		}
	}()
}

// Wait blocks until pending audit writes finish.
func (a *AuditRecorder) Wait() {
	a.wg.Wait()
}
