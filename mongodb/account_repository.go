package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go.pilab.hu/feelscape/domain"
)

// caseInsensitive compares strings ignoring case.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// AccountRepository implements domain.AccountRepository.
type AccountRepository struct {
	accounts *mongo.Collection
}

// NewAccountRepository creates the repository and ensures its indexes.
func NewAccountRepository(ctx context.Context, db *mongo.Database) (*AccountRepository, error) {
	repo := &AccountRepository{
		accounts: db.Collection(AccountsCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create account indexes")
	}
	return repo, nil
}

func (r *AccountRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetCollation(caseInsensitive),
		},
	}

	if _, err := r.accounts.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes for accounts collection: %w", err)
	}
	log.Debug().Msg("Indexes for accounts collection ensured.")
	return nil
}

// CreateAccount inserts a new account. A taken email yields
// domain.ErrEmailAlreadyInUse.
func (r *AccountRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	if account.ID == "" {
		return errors.New("account ID is required")
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))

	if _, err := r.accounts.InsertOne(ctx, account); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrEmailAlreadyInUse
		}
		log.Error().Err(err).Str("id", account.ID).Msg("Error creating account in MongoDB")
		return err
	}
	return nil
}

// GetAccountByID retrieves an account by its ID.
func (r *AccountRepository) GetAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetAccountByEmail retrieves an account by email, ignoring case.
func (r *AccountRepository) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": strings.TrimSpace(email)}, options.FindOne().SetCollation(caseInsensitive))
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*domain.Account, error) {
	var account domain.Account
	err := r.accounts.FindOne(ctx, filter, opts...).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		log.Error().Err(err).Interface("filter", filter).Msg("Error getting account from MongoDB")
		return nil, err
	}
	return &account, nil
}

// UpdateDisplayName sets the authoritative display name of an account.
func (r *AccountRepository) UpdateDisplayName(ctx context.Context, id, displayName string) error {
	return r.set(ctx, id, bson.M{"display_name": displayName, "updated_at": time.Now().UTC()})
}

// TouchLastLogin records a successful sign-in.
func (r *AccountRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.set(ctx, id, bson.M{"last_login_at": at.UTC()})
}

func (r *AccountRepository) set(ctx context.Context, id string, fields bson.M) error {
	result, err := r.accounts.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Error updating account in MongoDB")
		return err
	}
	if result.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
