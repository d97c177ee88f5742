package audit

import (
	"context"

	"go-pipeline/internal/common/models"
	"go-pipeline/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AuditRepository interface {
	Create(ctx context.Context, log models.AuditLog) error
	List(ctx context.Context, filters map[string]interface{}, limit, offset int64) ([]models.AuditLog, error)
}

type AuditRepositoryImpl struct {
	Collection *mongo.Collection
}

// NewAuditRepository returns the Mongo-backed trail, or a repository that drops
// entries when Mongo is not configured.
func NewAuditRepository(mongodb *database.MongodbDB) AuditRepository {
	if !mongodb.Enabled() {
		return discardRepository{}
	}
	return &AuditRepositoryImpl{
		Collection: mongodb.DB.Collection("audit_logs"),
	}
}

func (r *AuditRepositoryImpl) Create(ctx context.Context, log models.AuditLog) error {
	_, err := r.Collection.InsertOne(ctx, log)
	return err
}

func (r *AuditRepositoryImpl) List(ctx context.Context, filters map[string]interface{}, limit, offset int64) ([]models.AuditLog, error) {
	opts := options.Find().SetLimit(limit).SetSkip(offset).SetSort(bson.M{"timestamp": -1})

	query := bson.M{}
	for k, v := range filters {
		if v == nil {
			continue
		}
		if str, ok := v.(string); ok && str == "" {
			continue
		}
		query[k] = v
	}

	cursor, err := r.Collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	logs := []models.AuditLog{}
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

type discardRepository struct{}

func (discardRepository) Create(context.Context, models.AuditLog) error { return nil }

func (discardRepository) List(context.Context, map[string]interface{}, int64, int64) ([]models.AuditLog, error) {
	return []models.AuditLog{}, nil
}
