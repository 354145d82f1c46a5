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

const collectionVehicles = "cars"

// caseInsensitive makes equality matches ignore letter case, backing the
// plate/VIN lookup contract.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// VehicleRepository implements ports.VehicleRepository using MongoDB.
type VehicleRepository struct {
	db  *mongo.Database
	col *mongo.Collection
}

func NewVehicleRepository(db *mongo.Database) *VehicleRepository {
	return &VehicleRepository{db: db, col: db.Collection(collectionVehicles)}
}

// Create assigns the next sequence id and inserts the vehicle. A unique-index
// violation on the VIN surfaces as domain.ErrDuplicateVIN.
func (r *VehicleRepository) Create(ctx context.Context, v *domain.Vehicle) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := nextSequence(ctx, r.db, collectionVehicles)
	if err != nil {
		return err
	}
	v.ID = id

	if _, err := r.col.InsertOne(ctx, v); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateVIN
		}
		return err
	}
	return nil
}

// List returns up to limit vehicles, most recently added first.
func (r *VehicleRepository) List(ctx context.Context, limit int) ([]domain.Vehicle, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "_id", Value: -1}}).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}

	var vehicles []domain.Vehicle
	if err := cur.All(ctx, &vehicles); err != nil {
		return nil, err
	}
	return vehicles, nil
}

func (r *VehicleRepository) FindByID(ctx context.Context, id int64) (*domain.Vehicle, error) {
	return r.findOne(ctx, bson.M{"_id": id}, nil)
}

func (r *VehicleRepository) FindByVIN(ctx context.Context, vin string) (*domain.Vehicle, error) {
	return r.findOne(ctx, bson.M{"vin": vin}, caseInsensitive)
}

// FindByPlateOrVIN matches either column, ignoring case.
func (r *VehicleRepository) FindByPlateOrVIN(ctx context.Context, identifier string) (*domain.Vehicle, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"plate": identifier},
		bson.M{"vin": identifier},
	}}
	return r.findOne(ctx, filter, caseInsensitive)
}

func (r *VehicleRepository) findOne(ctx context.Context, filter bson.M, collation *options.Collation) (*domain.Vehicle, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOne()
	if collation != nil {
		opts.SetCollation(collation)
	}

	var v domain.Vehicle
	err := r.col.FindOne(ctx, filter, opts).Decode(&v)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrVehicleNotFound
		}
		return nil, err
	}
	return &v, nil
}

// UpdateField sets a single allow-listed field to an already-normalized value.
func (r *VehicleRepository) UpdateField(ctx context.Context, id int64, field domain.VehicleField, value any) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{string(field): value}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrVehicleNotFound
	}
	return nil
}

func (r *VehicleRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrVehicleNotFound
	}
	return nil
}

// EnsureIndexes creates necessary indexes on the cars collection.
func (r *VehicleRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "vin", Value: 1}},
			Options: options.Index().SetUnique(true).SetCollation(caseInsensitive),
		},
		{Keys: bson.D{{Key: "plate", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
