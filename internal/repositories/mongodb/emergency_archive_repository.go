package mongodb

import (
	"context"
	"fmt"

	"racebeacon/internal/models"
	"racebeacon/internal/repositories/interfaces"
	"racebeacon/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type emergencyArchiveRepository struct {
	collection *mongo.Collection
}

func NewEmergencyArchiveRepository(db *mongo.Database) interfaces.EmergencyArchive {
	return &emergencyArchiveRepository{
		collection: db.Collection(database.EmergenciesCollection),
	}
}

// Archive upserts by emergency id so a retried purge never duplicates history.
func (r *emergencyArchiveRepository) Archive(ctx context.Context, emergencies []*models.Emergency) error {
	if len(emergencies) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, 0, len(emergencies))
	for _, emergency := range emergencies {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": emergency.ID}).
			SetReplacement(emergency).
			SetUpsert(true))
	}

	_, err := r.collection.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to archive %d emergencies: %w", len(emergencies), err)
	}

	return nil
}
