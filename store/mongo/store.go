// Package mongo provides a MongoDB-backed Store implementation.
//
// Multi-document transactions require a replica set or sharded cluster;
// WithTransaction uses driver sessions, so the transactional state rides on
// the context passed to fn and the same Store value serves both transactional
// and plain calls.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	giya "github.com/giya-app/giya"
	"github.com/giya-app/giya/account"
	"github.com/giya-app/giya/accrual"
	"github.com/giya-app/giya/business"
	"github.com/giya-app/giya/commission"
	"github.com/giya-app/giya/id"
	"github.com/giya-app/giya/offer"
	"github.com/giya-app/giya/redemption"
	"github.com/giya-app/giya/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store backed by MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to the MongoDB deployment at uri and uses database dbName.
func Open(uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return New(client, dbName), nil
}

// New wraps an existing client.
func New(client *mongo.Client, dbName string) *Store {
	return &Store{client: client, db: client.Database(dbName)}
}

// ──────────────────────────────────────────────────
// Transaction support
// ──────────────────────────────────────────────────

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return errors.Join(giya.ErrStoreUnavailable, err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		return nil, fn(txCtx, s)
	})
	if err != nil && isTransient(err) {
		return errors.Join(giya.ErrTransactionConflict, err)
	}
	return err
}

// isTransient reports whether err carries the driver's transient transaction
// label, meaning the whole transaction may be retried.
func isTransient(err error) bool {
	var labeled interface{ HasErrorLabel(string) bool }
	if errors.As(err, &labeled) {
		return labeled.HasErrorLabel("TransientTransactionError")
	}
	return false
}

// ──────────────────────────────────────────────────
// Account methods
// ──────────────────────────────────────────────────

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	_, err := s.db.Collection(collAccounts).InsertOne(ctx, toAccountDoc(a))
	if mongo.IsDuplicateKeyError(err) {
		return giya.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	var d accountDoc
	err := s.db.Collection(collAccounts).FindOne(ctx, bson.M{"_id": accountID.String()}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, giya.ErrAccountNotFound
		}
		return nil, err
	}
	return fromAccountDoc(&d), nil
}

func (s *Store) AdjustBalance(ctx context.Context, accountID id.AccountID, delta int64) (int64, error) {
	filter := bson.M{"_id": accountID.String()}
	if delta < 0 {
		filter["balance"] = bson.M{"$gte": -delta}
	}
	update := bson.M{
		"$inc": bson.M{"balance": delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	var d accountDoc
	err := s.db.Collection(collAccounts).
		FindOneAndUpdate(ctx, filter, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After)).
		Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if _, getErr := s.GetAccount(ctx, accountID); getErr != nil {
				return 0, getErr
			}
			return 0, giya.ErrInsufficientBalance
		}
		return 0, err
	}
	return d.Balance, nil
}

// ──────────────────────────────────────────────────
// Business methods
// ──────────────────────────────────────────────────

func (s *Store) CreateBusiness(ctx context.Context, b *business.Business) error {
	_, err := s.db.Collection(collBusinesses).InsertOne(ctx, toBusinessDoc(b))
	if mongo.IsDuplicateKeyError(err) {
		return giya.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetBusiness(ctx context.Context, businessID id.BusinessID) (*business.Business, error) {
	var d businessDoc
	err := s.db.Collection(collBusinesses).FindOne(ctx, bson.M{"_id": businessID.String()}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, giya.ErrBusinessNotFound
		}
		return nil, err
	}
	return fromBusinessDoc(&d), nil
}

func (s *Store) ListBusinesses(ctx context.Context, opts business.ListOpts) ([]*business.Business, error) {
	filter := bson.M{}
	if opts.ActiveOnly {
		filter["active"] = true
	}

	cursor, err := s.db.Collection(collBusinesses).Find(ctx, filter, findOpts(opts.Offset, opts.Limit, "created_at"))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	result := make([]*business.Business, 0)
	for cursor.Next(ctx) {
		var d businessDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, err
		}
		result = append(result, fromBusinessDoc(&d))
	}
	return result, cursor.Err()
}

func (s *Store) UpdateBusiness(ctx context.Context, b *business.Business) error {
	res, err := s.db.Collection(collBusinesses).UpdateOne(ctx,
		bson.M{"_id": b.ID.String()},
		bson.M{"$set": bson.M{
			"name":            b.Name,
			"spend_per_point": b.SpendPerPoint,
			"active":          b.Active,
			"referral_code":   b.ReferralCode,
			"updated_at":      time.Now().UTC(),
		}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return giya.ErrAlreadyExists
		}
		return err
	}
	if res.MatchedCount == 0 {
		return giya.ErrBusinessNotFound
	}
	return nil
}

// ──────────────────────────────────────────────────
// Offer methods
// ──────────────────────────────────────────────────

func (s *Store) CreateOffer(ctx context.Context, o *offer.Offer) error {
	_, err := s.db.Collection(collOffers).InsertOne(ctx, toOfferDoc(o))
	if mongo.IsDuplicateKeyError(err) {
		return giya.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetOffer(ctx context.Context, offerID id.OfferID) (*offer.Offer, error) {
	var d offerDoc
	err := s.db.Collection(collOffers).FindOne(ctx, bson.M{"_id": offerID.String()}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, giya.ErrOfferNotFound
		}
		return nil, err
	}
	return fromOfferDoc(&d), nil
}

func (s *Store) ListOffers(ctx context.Context, businessID id.BusinessID, opts offer.ListOpts) ([]*offer.Offer, error) {
	filter := bson.M{"business_id": businessID.String()}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}
	if opts.ActiveOnly {
		filter["active"] = true
	}

	cursor, err := s.db.Collection(collOffers).Find(ctx, filter, findOpts(opts.Offset, opts.Limit, "created_at"))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	result := make([]*offer.Offer, 0)
	for cursor.Next(ctx) {
		var d offerDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, err
		}
		result = append(result, fromOfferDoc(&d))
	}
	return result, cursor.Err()
}

func (s *Store) UpdateOffer(ctx context.Context, o *offer.Offer) error {
	res, err := s.db.Collection(collOffers).UpdateOne(ctx,
		bson.M{"_id": o.ID.String()},
		bson.M{"$set": bson.M{
			"kind":             string(o.Kind),
			"name":             o.Name,
			"description":      o.Description,
			"points_required":  o.PointsRequired,
			"active":           o.Active,
			"redemption_limit": o.RedemptionLimit,
			"valid_from":       o.ValidFrom,
			"valid_until":      o.ValidUntil,
			"discount_percent": o.DiscountPercent,
			"metadata":         o.Metadata,
			"updated_at":       time.Now().UTC(),
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return giya.ErrOfferNotFound
	}
	return nil
}

func (s *Store) DeactivateOffer(ctx context.Context, offerID id.OfferID) error {
	res, err := s.db.Collection(collOffers).UpdateOne(ctx,
		bson.M{"_id": offerID.String()},
		bson.M{"$set": bson.M{"active": false, "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return giya.ErrOfferNotFound
	}
	return nil
}

func (s *Store) ReserveOfferSlot(ctx context.Context, offerID id.OfferID) error {
	filter := bson.M{
		"_id":    offerID.String(),
		"active": true,
		"$or": []bson.M{
			{"redemption_limit": 0},
			{"$expr": bson.M{"$lt": []string{"$redemption_count", "$redemption_limit"}}},
		},
	}
	res, err := s.db.Collection(collOffers).UpdateOne(ctx, filter,
		bson.M{
			"$inc": bson.M{"redemption_count": 1},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, getErr := s.GetOffer(ctx, offerID); getErr != nil {
			return getErr
		}
		return giya.ErrOfferExhausted
	}
	return nil
}

func (s *Store) ReleaseOfferSlot(ctx context.Context, offerID id.OfferID) error {
	res, err := s.db.Collection(collOffers).UpdateOne(ctx,
		bson.M{"_id": offerID.String(), "redemption_count": bson.M{"$gt": 0}},
		bson.M{
			"$inc": bson.M{"redemption_count": -1},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, getErr := s.GetOffer(ctx, offerID); getErr != nil {
			return getErr
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Accrual methods
// ──────────────────────────────────────────────────

func (s *Store) AppendAccrual(ctx context.Context, r *accrual.Record) error {
	_, err := s.db.Collection(collAccruals).InsertOne(ctx, toAccrualDoc(r))
	if mongo.IsDuplicateKeyError(err) {
		return giya.ErrDuplicateRecord
	}
	return err
}

func (s *Store) GetAccrual(ctx context.Context, recordID id.AccrualID) (*accrual.Record, error) {
	var d accrualDoc
	err := s.db.Collection(collAccruals).FindOne(ctx, bson.M{"_id": recordID.String()}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, giya.ErrNotFound
		}
		return nil, err
	}
	return fromAccrualDoc(&d), nil
}

func (s *Store) GetAccrualByRef(ctx context.Context, ref string) (*accrual.Record, error) {
	if ref == "" {
		return nil, giya.ErrNotFound
	}
	var d accrualDoc
	err := s.db.Collection(collAccruals).FindOne(ctx, bson.M{"ref": ref}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, giya.ErrNotFound
		}
		return nil, err
	}
	return fromAccrualDoc(&d), nil
}

func (s *Store) ListAccruals(ctx context.Context, accountID id.AccountID, opts accrual.ListOpts) ([]*accrual.Record, error) {
	filter := bson.M{"account_id": accountID.String()}
	if !opts.BusinessID.IsNil() {
		filter["business_id"] = opts.BusinessID.String()
	}

	cursor, err := s.db.Collection(collAccruals).Find(ctx, filter, findOpts(opts.Offset, opts.Limit, "created_at"))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	result := make([]*accrual.Record, 0)
	for cursor.Next(ctx) {
		var d accrualDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, err
		}
		result = append(result, fromAccrualDoc(&d))
	}
	return result, cursor.Err()
}

// ──────────────────────────────────────────────────
// Redemption token methods
// ──────────────────────────────────────────────────

func (s *Store) CreateToken(ctx context.Context, t *redemption.Token) error {
	_, err := s.db.Collection(collTokens).InsertOne(ctx, toTokenDoc(t))
	if mongo.IsDuplicateKeyError(err) {
		return giya.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetToken(ctx context.Context, tokenID id.RedemptionID) (*redemption.Token, error) {
	var d tokenDoc
	err := s.db.Collection(collTokens).FindOne(ctx, bson.M{"_id": tokenID.String()}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, giya.ErrTokenNotFound
		}
		return nil, err
	}
	return fromTokenDoc(&d), nil
}

func (s *Store) GetTokenByCode(ctx context.Context, code string) (*redemption.Token, error) {
	var d tokenDoc
	err := s.db.Collection(collTokens).FindOne(ctx, bson.M{"code": code}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, giya.ErrTokenNotFound
		}
		return nil, err
	}
	return fromTokenDoc(&d), nil
}

func (s *Store) ListTokens(ctx context.Context, accountID id.AccountID, opts redemption.ListOpts) ([]*redemption.Token, error) {
	filter := bson.M{"account_id": accountID.String()}
	if opts.State != "" {
		filter["state"] = string(opts.State)
	}

	cursor, err := s.db.Collection(collTokens).Find(ctx, filter, findOpts(opts.Offset, opts.Limit, "issued_at"))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	result := make([]*redemption.Token, 0)
	for cursor.Next(ctx) {
		var d tokenDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, err
		}
		result = append(result, fromTokenDoc(&d))
	}
	return result, cursor.Err()
}

func (s *Store) ConsumeToken(ctx context.Context, code string, consumedBy string, at time.Time) error {
	res, err := s.db.Collection(collTokens).UpdateOne(ctx,
		bson.M{"code": code, "state": string(redemption.StateIssued)},
		bson.M{"$set": bson.M{
			"state":       string(redemption.StateConsumed),
			"consumed_at": at,
			"consumed_by": consumedBy,
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		t, getErr := s.GetTokenByCode(ctx, code)
		if getErr != nil {
			return getErr
		}
		if t.State == redemption.StateCancelled {
			return giya.ErrTokenCancelled
		}
		return giya.ErrTokenAlreadyConsumed
	}
	return nil
}

func (s *Store) CancelToken(ctx context.Context, tokenID id.RedemptionID, at time.Time) error {
	res, err := s.db.Collection(collTokens).UpdateOne(ctx,
		bson.M{"_id": tokenID.String(), "state": string(redemption.StateIssued)},
		bson.M{"$set": bson.M{
			"state":        string(redemption.StateCancelled),
			"cancelled_at": at,
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		t, getErr := s.GetToken(ctx, tokenID)
		if getErr != nil {
			return getErr
		}
		if t.State == redemption.StateCancelled {
			return giya.ErrTokenCancelled
		}
		return giya.ErrTokenAlreadyConsumed
	}
	return nil
}

// ──────────────────────────────────────────────────
// Commission methods
// ──────────────────────────────────────────────────

func (s *Store) AppendCommission(ctx context.Context, g *commission.Grant) error {
	_, err := s.db.Collection(collCommissions).InsertOne(ctx, toCommissionDoc(g))
	if mongo.IsDuplicateKeyError(err) {
		return giya.ErrDuplicateRecord
	}
	return err
}

func (s *Store) GetCommissionBySource(ctx context.Context, sourceAccrualID id.AccrualID) (*commission.Grant, error) {
	var d commissionDoc
	err := s.db.Collection(collCommissions).FindOne(ctx, bson.M{"source_accrual_id": sourceAccrualID.String()}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, giya.ErrCommissionNotFound
		}
		return nil, err
	}
	return fromCommissionDoc(&d), nil
}

func (s *Store) ListCommissions(ctx context.Context, referrerAccountID id.AccountID, opts commission.ListOpts) ([]*commission.Grant, error) {
	filter := bson.M{"referrer_account_id": referrerAccountID.String()}

	cursor, err := s.db.Collection(collCommissions).Find(ctx, filter, findOpts(opts.Offset, opts.Limit, "created_at"))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	result := make([]*commission.Grant, 0)
	for cursor.Next(ctx) {
		var d commissionDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, err
		}
		result = append(result, fromCommissionDoc(&d))
	}
	return result, cursor.Err()
}

// ──────────────────────────────────────────────────
// Store management
// ──────────────────────────────────────────────────

// Migrate creates the unique and lookup indexes. The accrual ref and
// business referral code indexes are partial so that empty values do not
// collide.
func (s *Store) Migrate(ctx context.Context) error {
	nonEmpty := func(field string) bson.D {
		return bson.D{{Key: field, Value: bson.D{{Key: "$gt", Value: ""}}}}
	}

	indexes := map[string][]mongo.IndexModel{
		collBusinesses: {
			{
				Keys: bson.D{{Key: "referral_code", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(nonEmpty("referral_code")),
			},
		},
		collOffers: {
			{Keys: bson.D{{Key: "business_id", Value: 1}}},
		},
		collAccruals: {
			{Keys: bson.D{{Key: "account_id", Value: 1}}},
			{
				Keys: bson.D{{Key: "ref", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(nonEmpty("ref")),
			},
		},
		collTokens: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "account_id", Value: 1}}},
		},
		collCommissions: {
			{Keys: bson.D{{Key: "source_accrual_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "referrer_account_id", Value: 1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Join(giya.ErrMigrationFailed, err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func findOpts(offset, limit int, sortField string) *options.FindOptionsBuilder {
	opts := options.Find().SetSort(bson.D{{Key: sortField, Value: 1}})
	if offset > 0 {
		opts = opts.SetSkip(int64(offset))
	}
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	return opts
}
