package strata

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBackend serves the backend contract from MongoDB collections. It
// exposes streaming reads (cursor-backed), counting, upsert-by-id, liveness
// and teardown; bulk reads are derived by the collection handle.
type MongoBackend struct {
	client *MongoClient
	logger Logger
}

func NewMongoBackend(client *MongoClient, logger Logger) *MongoBackend {
	if logger == nil {
		logger = NewNoopLogger()
	}
	return &MongoBackend{client: client, logger: logger}
}

func (b *MongoBackend) Name() string { return "mongo" }

func (b *MongoBackend) Insert(ctx context.Context, collection string, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]any, len(records))
	for i, rec := range records {
		rec.EnsureID()
		docs[i] = recordToBson(rec)
	}
	if _, err := b.client.Collection(collection).InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("mongo insert: %w", err)
	}
	return nil
}

func (b *MongoBackend) Update(ctx context.Context, collection string, filter Filter, changes Record) (int64, error) {
	update := bson.M{"$set": recordToBson(changes)}
	res, err := b.client.Collection(collection).UpdateMany(ctx, filterToBson(filter), update)
	if err != nil {
		return 0, fmt.Errorf("mongo update: %w", err)
	}
	return res.ModifiedCount, nil
}

func (b *MongoBackend) Remove(ctx context.Context, collection string, filter Filter) (int64, error) {
	res, err := b.client.Collection(collection).DeleteMany(ctx, filterToBson(filter))
	if err != nil {
		return 0, fmt.Errorf("mongo remove: %w", err)
	}
	return res.DeletedCount, nil
}

func (b *MongoBackend) Upsert(ctx context.Context, collection string, record Record) error {
	id := record.EnsureID()
	opts := options.Replace().SetUpsert(true)
	if _, err := b.client.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, recordToBson(record), opts); err != nil {
		return fmt.Errorf("mongo upsert: %w", err)
	}
	return nil
}

func (b *MongoBackend) FindStream(ctx context.Context, collection string, filter Filter) (RecordSource, error) {
	cursor, err := b.client.Collection(collection).Find(ctx, filterToBson(filter))
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	return &mongoSource{cursor: cursor}, nil
}

func (b *MongoBackend) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	n, err := b.client.Collection(collection).CountDocuments(ctx, filterToBson(filter))
	if err != nil {
		return 0, fmt.Errorf("mongo count: %w", err)
	}
	return n, nil
}

func (b *MongoBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx)
}

func (b *MongoBackend) Close(ctx context.Context) error {
	return b.client.Disconnect(ctx)
}

// mongoSource adapts a driver cursor into a RecordSource.
type mongoSource struct {
	cursor *mongo.Cursor
	closed bool
}

func (s *mongoSource) Next(ctx context.Context) (Record, error) {
	if s.closed {
		return nil, ErrEndOfStream
	}
	if !s.cursor.Next(ctx) {
		if err := s.cursor.Err(); err != nil {
			return nil, fmt.Errorf("mongo cursor: %w", err)
		}
		return nil, ErrEndOfStream
	}
	var doc bson.M
	if err := s.cursor.Decode(&doc); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}
	return bsonToRecord(doc), nil
}

func (s *mongoSource) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.cursor.Close(ctx); err != nil && !errors.Is(err, mongo.ErrNilCursor) {
		return fmt.Errorf("mongo close cursor: %w", err)
	}
	return nil
}

func filterToBson(filter Filter) bson.M {
	out := bson.M{}
	for path, value := range filter {
		out[path] = value
	}
	return out
}

func recordToBson(rec Record) bson.M {
	return bson.M(rec)
}

func bsonToRecord(doc bson.M) Record {
	rec := make(Record, len(doc))
	for k, v := range doc {
		rec[k] = normalizeBsonValue(v)
	}
	return rec
}

// normalizeBsonValue rewrites driver-specific container types into the plain
// nested maps the record contract promises.
func normalizeBsonValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, nested := range t {
			out[k] = normalizeBsonValue(nested)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalizeBsonValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeBsonValue(item)
		}
		return out
	case int32:
		return int64(t)
	default:
		return v
	}
}
