package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fleetops/fleetbot/internal/core/domain"
)

const collectionUsers = "users"

// UserRepository implements ports.UserRepository using MongoDB. Documents are
// keyed by the Telegram id.
type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

// EnsureUser upserts the user with role "user" on first contact. When the
// insert makes the collection hold exactly one document, that user becomes
// admin. The count check runs right after the upsert; inbound events are
// serialized per user, so first-contact races are only theoretical.
func (r *UserRepository) EnsureUser(ctx context.Context, telegramID int64, fullName string) (domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": telegramID},
		bson.M{"$setOnInsert": bson.M{
			"full_name":  fullName,
			"role":       domain.RoleUser,
			"created_at": time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return "", err
	}

	if res.UpsertedCount == 1 {
		count, err := r.col.CountDocuments(ctx, bson.M{})
		if err != nil {
			return "", err
		}
		if count == 1 {
			if _, err := r.col.UpdateByID(ctx, telegramID,
				bson.M{"$set": bson.M{"role": domain.RoleAdmin}}); err != nil {
				return "", err
			}
			return domain.RoleAdmin, nil
		}
	}

	return r.RoleOf(ctx, telegramID)
}

func (r *UserRepository) RoleOf(ctx context.Context, telegramID int64) (domain.Role, error) {
	var u domain.User
	err := r.col.FindOne(ctx, bson.M{"_id": telegramID}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", domain.ErrUserNotFound
		}
		return "", err
	}
	return u.Role, nil
}

func (r *UserRepository) SetRole(ctx context.Context, telegramID int64, role domain.Role) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateByID(ctx, telegramID, bson.M{"$set": bson.M{"role": role}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{"role": role},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}

	var users []domain.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
