package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fleetops/fleetbot/internal/core/domain"
	"github.com/fleetops/fleetbot/internal/core/ports"
)

const collectionServices = "services"

// ServiceRepository implements ports.ServiceRepository using MongoDB.
type ServiceRepository struct {
	db  *mongo.Database
	col *mongo.Collection
}

func NewServiceRepository(db *mongo.Database) *ServiceRepository {
	return &ServiceRepository{db: db, col: db.Collection(collectionServices)}
}

// Create assigns the next sequence id and inserts the request.
func (r *ServiceRepository) Create(ctx context.Context, s *domain.ServiceRequest) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := nextSequence(ctx, r.db, collectionServices)
	if err != nil {
		return err
	}
	s.ID = id

	_, err = r.col.InsertOne(ctx, s)
	return err
}

// FindDetail loads the request joined with its vehicle's identifying columns.
func (r *ServiceRepository) FindDetail(ctx context.Context, id int64) (*domain.ServiceDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": id}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         collectionVehicles,
			"localField":   "vehicle_id",
			"foreignField": "_id",
			"as":           "vehicle",
		}}},
		{{Key: "$unwind", Value: bson.M{
			"path":                       "$vehicle",
			"preserveNullAndEmptyArrays": true,
		}}},
		{{Key: "$addFields", Value: bson.M{
			"plate":         "$vehicle.plate",
			"vin":           "$vehicle.vin",
			"owner_company": "$vehicle.owner_company",
		}}},
		{{Key: "$project", Value: bson.M{"vehicle": 0}}},
	}

	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, err
		}
		return nil, domain.ErrServiceNotFound
	}

	var d domain.ServiceDetail
	if err := cur.Decode(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateStatus transitions the request to next. The filter only matches
// documents in an eligible source state, so a request that already advanced
// (or is terminal) is never overwritten.
func (r *ServiceRepository) UpdateStatus(ctx context.Context, id int64, next domain.ServiceStatus) error {
	return r.guardedUpdate(ctx, id, next, bson.M{"status": next})
}

// Complete sets the completion fields and status=done in one write, under the
// same eligibility guard as UpdateStatus.
func (r *ServiceRepository) Complete(ctx context.Context, id int64, c ports.Completion) error {
	set := bson.M{
		"status":        domain.StatusDone,
		"final_mileage": c.FinalMileage,
		"cost_net":      c.CostNet,
		"comments":      c.Comments,
	}
	return r.guardedUpdate(ctx, id, domain.StatusDone, set)
}

func (r *ServiceRepository) guardedUpdate(ctx context.Context, id int64, next domain.ServiceStatus, set bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": domain.EligibleSources(next)},
	}
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		count, err := r.col.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrServiceNotFound
		}
		return domain.ErrInvalidTransition
	}
	return nil
}

// MonthlyNetTotal sums cost_net over requests with status=done whose creation
// timestamp falls within the given calendar month. Returns 0 when nothing matches.
func (r *ServiceRepository) MonthlyNetTotal(ctx context.Context, year int, month int) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"status":     domain.StatusDone,
			"created_at": bson.M{"$gte": start, "$lt": end},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$cost_net"},
		}}},
	}

	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		return 0, cur.Err()
	}

	var doc struct {
		Total float64 `bson:"total"`
	}
	if err := cur.Decode(&doc); err != nil {
		return 0, err
	}
	return doc.Total, nil
}

// EnsureIndexes creates necessary indexes on the services collection.
func (r *ServiceRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "mechanic_id", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
