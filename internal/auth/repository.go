package auth

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"NoticeHub/internal/audience"
	"NoticeHub/internal/config"
)

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database, settings *config.Settings) *UserRepository {
	return &UserRepository{collection: db.Collection(settings.UsersCollection)}
}

// Collection exposes the backing collection for index setup at startup.
func (r *UserRepository) Collection() *mongo.Collection {
	return r.collection
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// FindByID looks a user up by hex id. A missing document returns (nil, nil);
// callers decide whether that is fatal.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	var user User
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user *User) error {
	_, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.New("user number already exists")
		}
		return err
	}
	return nil
}

// Profile implements audience.ProfileSource for dependent hydration.
func (r *UserRepository) Profile(ctx context.Context, id string) (*audience.Profile, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	return user.AudienceProfile(), nil
}

// RolesByIDs is the batched role-lookup behind the sender role resolver: one
// query for the whole id set, ids that fail to parse or match simply absent
// from the result.
func (r *UserRepository) RolesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		oids = append(oids, oid)
	}
	roles := make(map[string]string, len(oids))
	if len(oids) == 0 {
		return roles, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	var users []*User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	for _, u := range users {
		roles[u.ID.Hex()] = u.Role
	}
	return roles, nil
}
