package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio"
)

// DefaultCollection is where registry documents are kept unless configured otherwise
const DefaultCollection = "registry_objects"

// storedObject is one registry object in MongoDB. The key is the _id.
type storedObject struct {
	Key         string    `bson:"_id"`
	Data        []byte    `bson:"data"`
	ContentType string    `bson:"content_type"`
	Version     string    `bson:"version"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

// Store implements portfolio.DocumentStore on a MongoDB collection.
// Each write stamps a fresh ObjectID as the version.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Connect dials MongoDB and returns a store over database.collection
func Connect(ctx context.Context, mongoURI, database, collection string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{client: client, collection: client.Database(database).Collection(collection)}, nil
}

// New wraps an existing collection
func New(collection *mongo.Collection) *Store {
	return &Store{collection: collection}
}

// Close disconnects the client if the store owns it
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) Get(ctx context.Context, key string) (*portfolio.Object, error) {
	var stored storedObject
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&stored)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, portfolio.ErrNotFound
	}
	if err != nil {
		return nil, s.wrap("get", key, err)
	}
	return &portfolio.Object{
		Key:         key,
		Data:        stored.Data,
		ContentType: stored.ContentType,
		Version:     portfolio.Version(stored.Version),
	}, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte, opts portfolio.PutOptions) (portfolio.Version, error) {
	next := storedObject{
		Key:         key,
		Data:        data,
		ContentType: opts.ContentType,
		Version:     primitive.NewObjectID().Hex(),
		UpdatedAt:   time.Now().UTC(),
	}

	switch {
	case opts.IfAbsent:
		if _, err := s.collection.InsertOne(ctx, next); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return portfolio.VersionAbsent, portfolio.ErrConditionFailed
			}
			return portfolio.VersionAbsent, s.wrap("put", key, err)
		}
	case !opts.IfMatch.IsAbsent():
		res, err := s.collection.ReplaceOne(ctx, bson.M{"_id": key, "version": string(opts.IfMatch)}, next)
		if err != nil {
			return portfolio.VersionAbsent, s.wrap("put", key, err)
		}
		if res.MatchedCount == 0 {
			return portfolio.VersionAbsent, portfolio.ErrConditionFailed
		}
	default:
		if _, err := s.collection.ReplaceOne(ctx, bson.M{"_id": key}, next, options.Replace().SetUpsert(true)); err != nil {
			return portfolio.VersionAbsent, s.wrap("put", key, err)
		}
	}
	return portfolio.Version(next.Version), nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]portfolio.ObjectMeta, error) {
	filter := bson.M{}
	if prefix != "" {
		filter["_id"] = bson.M{"$regex": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(prefix)}}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.M{"data": 0})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, s.wrap("list", prefix, err)
	}
	defer cursor.Close(ctx)

	var metas []portfolio.ObjectMeta
	for cursor.Next(ctx) {
		var stored storedObject
		if err := cursor.Decode(&stored); err != nil {
			return nil, s.wrap("list", prefix, err)
		}
		metas = append(metas, portfolio.ObjectMeta{Key: stored.Key, UpdatedAt: stored.UpdatedAt})
	}
	if err := cursor.Err(); err != nil {
		return nil, s.wrap("list", prefix, err)
	}

	// sizes are not projected; fetch them in one aggregate pass
	return s.fillSizes(ctx, filter, metas)
}

func (s *Store) fillSizes(ctx context.Context, filter bson.M, metas []portfolio.ObjectMeta) ([]portfolio.ObjectMeta, error) {
	if len(metas) == 0 {
		return metas, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$project", Value: bson.M{"size": bson.M{"$binarySize": "$data"}}}},
	}
	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, s.wrap("list", "", err)
	}
	defer cursor.Close(ctx)

	sizes := make(map[string]int64, len(metas))
	for cursor.Next(ctx) {
		var row struct {
			Key  string `bson:"_id"`
			Size int64  `bson:"size"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, s.wrap("list", "", err)
		}
		sizes[row.Key] = row.Size
	}
	for i := range metas {
		metas[i].Size = sizes[metas[i].Key]
	}
	return metas, cursor.Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return s.wrap("delete", key, err)
	}
	return nil
}

func (s *Store) wrap(op, key string, err error) error {
	return &portfolio.StorageError{Backend: "mongo", Key: key, Op: op, Err: portfolio.Unavailable(err)}
}
