package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/example/khanpan/pkg/auth"
	"github.com/example/khanpan/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type userDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Name       string             `bson:"name"`
	Email      string             `bson:"email"`
	Password   string             `bson:"password,omitempty"`
	IsVerified bool               `bson:"isVerified"`
	OTP        *string            `bson:"otp,omitempty"`
	OTPExpires *time.Time         `bson:"otpExpires,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt"`
}

func newUserDocument(u *models.User) userDocument {
	return userDocument{
		Name:       u.Name,
		Email:      strings.ToLower(u.Email),
		Password:   u.PasswordHash,
		IsVerified: u.IsVerified,
		OTP:        u.OTP,
		OTPExpires: u.OTPExpires,
		CreatedAt:  u.CreatedAt,
	}
}

func (d *userDocument) toModel() *models.User {
	return &models.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.Password,
		IsVerified:   d.IsVerified,
		OTP:          d.OTP,
		OTPExpires:   d.OTPExpires,
		CreatedAt:    d.CreatedAt,
	}
}

// MongoUserStore implements auth.UserStore on the users collection.
type MongoUserStore struct {
	collection *mongo.Collection
}

var _ auth.UserStore = (*MongoUserStore)(nil)

func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (s *MongoUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, auth.ErrUserNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoUserStore) Create(ctx context.Context, user *models.User) error {
	doc := newUserDocument(user)
	doc.ID = primitive.NewObjectID()
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return auth.ErrEmailTaken
		}
		return err
	}
	user.ID = doc.ID.Hex()
	return nil
}

// Save replaces the whole document, so cleared OTP fields disappear.
func (s *MongoUserStore) Save(ctx context.Context, user *models.User) error {
	oid, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return auth.ErrUserNotFound
	}
	doc := newUserDocument(user)
	doc.ID = oid

	res, err := s.collection.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDocument
	if err := s.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}
