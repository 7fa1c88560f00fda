package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"poi-map/models"
)

const (
	defaultMongoDatabase   = "poi_db"
	defaultMongoCollection = "pois"
)

// poiDocument is one row as a MongoDB document. The position is stored with
// a GeoJSON point so a 2dsphere index can serve the collection directly.
type poiDocument struct {
	Position    int             `bson:"position"`
	Location    models.GeoPoint `bson:"location"`
	Category    []string        `bson:"category"`
	Date        time.Time       `bson:"date"`
	Title       string          `bson:"title"`
	Description string          `bson:"description"`
}

func toDocument(i int, p models.POI) poiDocument {
	return poiDocument{
		Position:    i,
		Location:    models.NewGeoPoint(p.Latitude, p.Longitude),
		Category:    p.Category,
		Date:        p.Date.Time,
		Title:       p.Title,
		Description: p.Description,
	}
}

func fromDocument(d poiDocument) (models.POI, error) {
	if len(d.Location.Coordinates) != 2 {
		return models.POI{}, fmt.Errorf("document %d: location must have 2 coordinates, got %d", d.Position, len(d.Location.Coordinates))
	}
	return models.POI{
		Longitude:   d.Location.Coordinates[0],
		Latitude:    d.Location.Coordinates[1],
		Category:    d.Category,
		Date:        models.DateOf(d.Date.UTC()),
		Title:       d.Title,
		Description: d.Description,
	}, nil
}

// MongoTable stores one document per row in a collection.
type MongoTable struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoTable connects and pings the server.
func NewMongoTable(ctx context.Context, uri string, opts Options) (*MongoTable, error) {
	dbName := opts.MongoDatabase
	if dbName == "" {
		dbName = defaultMongoDatabase
	}
	collName := opts.MongoCollection
	if collName == "" {
		collName = defaultMongoCollection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, storageErr("connect", "mongo", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, storageErr("ping", "mongo", err)
	}
	return &MongoTable{
		client:     client,
		collection: client.Database(dbName).Collection(collName),
	}, nil
}

func (t *MongoTable) Name() string {
	return fmt.Sprintf("mongo:%s.%s", t.collection.Database().Name(), t.collection.Name())
}

func (t *MongoTable) Load(ctx context.Context) ([]models.POI, error) {
	cursor, err := t.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "position", Value: 1}}))
	if err != nil {
		return nil, storageErr("find", t.Name(), err)
	}
	defer cursor.Close(ctx)

	var docs []poiDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, storageErr("decode", t.Name(), err)
	}
	out := make([]models.POI, 0, len(docs))
	for _, d := range docs {
		p, err := fromDocument(d)
		if err != nil {
			return nil, storageErr("parse", t.Name(), err)
		}
		out = append(out, p)
	}
	return out, nil
}

// Save deletes every document and inserts the table again. Standalone
// servers have no multi-document transactions, so a failure between the two
// calls leaves the collection empty until the next successful save.
func (t *MongoTable) Save(ctx context.Context, rows []models.POI) error {
	if _, err := t.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return storageErr("delete", t.Name(), err)
	}
	if len(rows) == 0 {
		return nil
	}
	docs := make([]any, len(rows))
	for i, p := range rows {
		docs[i] = toDocument(i, p)
	}
	if _, err := t.collection.InsertMany(ctx, docs); err != nil {
		return storageErr("insert", t.Name(), err)
	}
	return nil
}

func (t *MongoTable) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.client.Disconnect(ctx)
}
