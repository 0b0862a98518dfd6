// Package state persists sealed channel snapshots so a participant can
// resume a role across runs and machines.
package state

import (
	"context"

	"github.com/kwek20/streams/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type (
	StateRepo struct {
		collection *mongo.Collection
	}
)

func NewStateRepo(db *mongo.Database) *StateRepo {
	return &StateRepo{
		collection: db.Collection("snapshots"),
	}
}

func (r *StateRepo) GetByName(ctx context.Context, name string) (*model.SealedSnapshot, error) {
	filter := bson.M{
		"name": name,
	}

	var sealed model.SealedSnapshot
	err := r.collection.FindOne(ctx, filter).Decode(&sealed)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &sealed, nil
}

// Save writes the sealed snapshot under its name, replacing any
// previous one.
func (r *StateRepo) Save(ctx context.Context, sealed *model.SealedSnapshot) error {
	filter := bson.M{
		"name": sealed.Name,
	}

	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, filter, sealed, opts)
	return err
}
