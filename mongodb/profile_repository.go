package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go.pilab.hu/feelscape/domain"
)

// ProfileRepository implements domain.ProfileRepository on the profile
// document collection, one document per uid.
type ProfileRepository struct {
	profiles *mongo.Collection
}

// NewProfileRepository creates the repository and ensures its indexes.
func NewProfileRepository(ctx context.Context, db *mongo.Database) (*ProfileRepository, error) {
	repo := &ProfileRepository{
		profiles: db.Collection(ProfilesCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create profile indexes")
	}
	return repo, nil
}

func (r *ProfileRepository) createIndexes(ctx context.Context) error {
	_, err := r.profiles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "uid", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes for %s collection: %w", ProfilesCollection, err)
	}
	return nil
}

// GetProfile reads the profile document of uid.
func (r *ProfileRepository) GetProfile(ctx context.Context, uid string) (*domain.ProfileDocument, error) {
	var doc domain.ProfileDocument
	err := r.profiles.FindOne(ctx, bson.M{"uid": uid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("read profile %s: %w", uid, err)
	}
	return &doc, nil
}

// PutProfile writes the whole document, creating it when missing.
func (r *ProfileRepository) PutProfile(ctx context.Context, doc *domain.ProfileDocument) error {
	if doc.UID == "" {
		return errors.New("profile uid is required")
	}
	_, err := r.profiles.ReplaceOne(ctx, bson.M{"uid": doc.UID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("write profile %s: %w", doc.UID, err)
	}
	return nil
}

// MergeProfile sets only the fields named by update and stamps updatedAt
// with the server time. Other fields, createdAt included, are preserved.
func (r *ProfileRepository) MergeProfile(ctx context.Context, uid string, update domain.ProfileUpdate) error {
	change := bson.M{
		"$set":         bson.M{"displayName": update.DisplayName},
		"$currentDate": bson.M{"updatedAt": true},
	}
	_, err := r.profiles.UpdateOne(ctx, bson.M{"uid": uid}, change, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("merge profile %s: %w", uid, err)
	}
	return nil
}
