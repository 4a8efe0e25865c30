// Package mongostore implements the warden store interfaces on top of
// MongoDB. Entities live in three independent collections keyed by the
// opaque string id; cross-entity references are stored as bare id lists.
package mongostore

import (
	"context"
	"errors"
	"time"

	warden "go-warden"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collAccounts    = "accounts"
	collRoles       = "roles"
	collPermissions = "permissions"
)

// Store is a Mongo-backed warden.Store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ warden.Store = (*Store)(nil)

// Connect dials MongoDB, pings the primary, and ensures the unique indexes
// the uniqueness invariants rely on.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, err
	}

	s := &Store{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	_, err := s.db.Collection(collAccounts).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
	})
	if err != nil {
		return err
	}

	_, err = s.db.Collection(collRoles).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}}, Options: unique,
	})
	if err != nil {
		return err
	}

	_, err = s.db.Collection(collPermissions).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}}, Options: unique,
	})
	return err
}

// Accounts returns the account collection.
func (s *Store) Accounts() warden.AccountStore { return &accountStore{s.db.Collection(collAccounts)} }

// Roles returns the role collection.
func (s *Store) Roles() warden.RoleStore { return &roleStore{s.db.Collection(collRoles)} }

// Permissions returns the permission collection.
func (s *Store) Permissions() warden.PermissionStore {
	return &permissionStore{s.db.Collection(collPermissions)}
}

type accountStore struct {
	coll *mongo.Collection
}

func (a *accountStore) Create(ctx context.Context, account *warden.Account) error {
	_, err := a.coll.InsertOne(ctx, account)
	return err
}

func (a *accountStore) GetByID(ctx context.Context, id string) (*warden.Account, error) {
	return a.findOne(ctx, bson.M{"_id": id})
}

func (a *accountStore) GetByUsername(ctx context.Context, username string) (*warden.Account, error) {
	return a.findOne(ctx, bson.M{"username": username})
}

func (a *accountStore) GetByEmail(ctx context.Context, email string) (*warden.Account, error) {
	return a.findOne(ctx, bson.M{"email": email})
}

func (a *accountStore) findOne(ctx context.Context, filter bson.M) (*warden.Account, error) {
	var account warden.Account
	if err := a.coll.FindOne(ctx, filter).Decode(&account); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, warden.NewStoreNotFoundError("account")
		}
		return nil, err
	}
	return &account, nil
}

func (a *accountStore) List(ctx context.Context) ([]*warden.Account, error) {
	cursor, err := a.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var accounts []*warden.Account
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (a *accountStore) Update(ctx context.Context, account *warden.Account) error {
	res, err := a.coll.ReplaceOne(ctx, bson.M{"_id": account.ID}, account)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return warden.NewStoreNotFoundError("account")
	}
	return nil
}

func (a *accountStore) Delete(ctx context.Context, id string) error {
	res, err := a.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return warden.NewStoreNotFoundError("account")
	}
	return nil
}

// IncrementFailedAttempts uses a findAndModify so the post-increment counter
// comes back from the same write the increment rode on.
func (a *accountStore) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	after := options.After
	opts := options.FindOneAndUpdate().SetReturnDocument(after)

	var account warden.Account
	err := a.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"failed_login_attempts": 1}},
		opts,
	).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, warden.NewStoreNotFoundError("account")
		}
		return 0, err
	}
	return account.FailedAttempts, nil
}

func (a *accountStore) AnyWithRole(ctx context.Context, roleID string) (bool, error) {
	count, err := a.coll.CountDocuments(ctx, bson.M{"role_ids": roleID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type roleStore struct {
	coll *mongo.Collection
}

func (r *roleStore) Create(ctx context.Context, role *warden.Role) error {
	_, err := r.coll.InsertOne(ctx, role)
	return err
}

func (r *roleStore) GetByID(ctx context.Context, id string) (*warden.Role, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *roleStore) GetByName(ctx context.Context, name string) (*warden.Role, error) {
	return r.findOne(ctx, bson.M{"name": name})
}

func (r *roleStore) findOne(ctx context.Context, filter bson.M) (*warden.Role, error) {
	var role warden.Role
	if err := r.coll.FindOne(ctx, filter).Decode(&role); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, warden.NewStoreNotFoundError("role")
		}
		return nil, err
	}
	return &role, nil
}

func (r *roleStore) GetByIDs(ctx context.Context, ids []string) ([]*warden.Role, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var roles []*warden.Role
	if err := cursor.All(ctx, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleStore) List(ctx context.Context) ([]*warden.Role, error) {
	cursor, err := r.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var roles []*warden.Role
	if err := cursor.All(ctx, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleStore) Update(ctx context.Context, role *warden.Role) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": role.ID}, role)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return warden.NewStoreNotFoundError("role")
	}
	return nil
}

func (r *roleStore) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return warden.NewStoreNotFoundError("role")
	}
	return nil
}

func (r *roleStore) AnyWithPermission(ctx context.Context, permissionID string) (bool, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{"permission_ids": permissionID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type permissionStore struct {
	coll *mongo.Collection
}

func (p *permissionStore) Create(ctx context.Context, permission *warden.Permission) error {
	_, err := p.coll.InsertOne(ctx, permission)
	return err
}

func (p *permissionStore) GetByID(ctx context.Context, id string) (*warden.Permission, error) {
	return p.findOne(ctx, bson.M{"_id": id})
}

func (p *permissionStore) GetByName(ctx context.Context, name string) (*warden.Permission, error) {
	return p.findOne(ctx, bson.M{"name": name})
}

func (p *permissionStore) findOne(ctx context.Context, filter bson.M) (*warden.Permission, error) {
	var permission warden.Permission
	if err := p.coll.FindOne(ctx, filter).Decode(&permission); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, warden.NewStoreNotFoundError("permission")
		}
		return nil, err
	}
	return &permission, nil
}

func (p *permissionStore) GetByIDs(ctx context.Context, ids []string) ([]*warden.Permission, error) {
	cursor, err := p.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var permissions []*warden.Permission
	if err := cursor.All(ctx, &permissions); err != nil {
		return nil, err
	}
	return permissions, nil
}

func (p *permissionStore) List(ctx context.Context) ([]*warden.Permission, error) {
	cursor, err := p.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var permissions []*warden.Permission
	if err := cursor.All(ctx, &permissions); err != nil {
		return nil, err
	}
	return permissions, nil
}

func (p *permissionStore) Update(ctx context.Context, permission *warden.Permission) error {
	res, err := p.coll.ReplaceOne(ctx, bson.M{"_id": permission.ID}, permission)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return warden.NewStoreNotFoundError("permission")
	}
	return nil
}

func (p *permissionStore) Delete(ctx context.Context, id string) error {
	res, err := p.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return warden.NewStoreNotFoundError("permission")
	}
	return nil
}
