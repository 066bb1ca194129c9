// Package mongo provides a MongoDB-backed ident.Mapper for deployments
// where several bridge processes must agree on thread identity.
package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultCollection = "thread_ids"
	defaultOpTimeout  = 5 * time.Second
	mapperName        = "ident-mongo"
)

type (
	// Options configures the Mongo mapper.
	Options struct {
		Client     *mongodriver.Client
		Database   string
		Collection string
		Timeout    time.Duration
	}

	// Mapper implements ident.Mapper on a Mongo collection. Resolve is a
	// single FindOneAndUpdate upsert so racing resolutions across processes
	// settle on one UUID without an external lock.
	Mapper struct {
		mongo   *mongodriver.Client
		threads collection
		timeout time.Duration
	}

	mappingDocument struct {
		FrontID   string    `bson:"front_id"`
		AgentID   string    `bson:"agent_id"`
		CreatedAt time.Time `bson:"created_at"`
	}
)

// New returns a Mapper backed by MongoDB. It ensures the unique index on
// front_id before returning.
func New(opts Options) (*Mapper, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	coll := opts.Collection
	if coll == "" {
		coll = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	wrapper := mongoCollection{coll: opts.Client.Database(opts.Database).Collection(coll)}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ensureIndexes(ctx, wrapper); err != nil {
		return nil, err
	}
	return newMapperWithCollection(opts.Client, wrapper, timeout)
}

// Name implements health.Pinger.
func (m *Mapper) Name() string {
	return mapperName
}

// Ping implements health.Pinger.
func (m *Mapper) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return m.mongo.Ping(ctx, readpref.Primary())
}

// Resolve implements ident.Mapper. The candidate UUID is minted up front
// and only wins when no mapping exists yet; the returned document is always
// the authoritative one.
func (m *Mapper) Resolve(ctx context.Context, frontID string) (string, error) {
	if frontID == "" {
		return "", errors.New("front-end thread id is required")
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"front_id": frontID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"front_id":   frontID,
			"agent_id":   uuid.NewString(),
			"created_at": time.Now().UTC(),
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc mappingDocument
	if err := m.threads.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return "", err
	}
	return doc.AgentID, nil
}

// Forget implements ident.Mapper.
func (m *Mapper) Forget(ctx context.Context, frontID string) error {
	if frontID == "" {
		return errors.New("front-end thread id is required")
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	_, err := m.threads.DeleteOne(ctx, bson.M{"front_id": frontID})
	return err
}

func (m *Mapper) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if m.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.timeout)
}

func ensureIndexes(ctx context.Context, threads collection) error {
	index := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "front_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, err := threads.Indexes().CreateOne(ctx, index)
	return err
}

func newMapperWithCollection(mongoClient *mongodriver.Client, threads collection, timeout time.Duration) (*Mapper, error) {
	if threads == nil {
		return nil, errors.New("collection is required")
	}
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &Mapper{
		mongo:   mongoClient,
		threads: threads,
		timeout: timeout,
	}, nil
}

type collection interface {
	FindOneAndUpdate(ctx context.Context, filter any, update any,
		opts ...*options.FindOneAndUpdateOptions) singleResult
	DeleteOne(ctx context.Context, filter any,
		opts ...*options.DeleteOptions) (*mongodriver.DeleteResult, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel,
		opts ...*options.CreateIndexesOptions) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) FindOneAndUpdate(ctx context.Context, filter any, update any,
	opts ...*options.FindOneAndUpdateOptions) singleResult {
	return mongoSingleResult{res: c.coll.FindOneAndUpdate(ctx, filter, update, opts...)}
}

func (c mongoCollection) DeleteOne(ctx context.Context, filter any,
	opts ...*options.DeleteOptions) (*mongodriver.DeleteResult, error) {
	return c.coll.DeleteOne(ctx, filter, opts...)
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoSingleResult struct {
	res *mongodriver.SingleResult
}

func (r mongoSingleResult) Decode(val any) error {
	return r.res.Decode(val)
}

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel,
	opts ...*options.CreateIndexesOptions) (string, error) {
	return v.view.CreateOne(ctx, model, opts...)
}
