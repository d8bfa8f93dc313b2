package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/gitlab-composer/pkg/composer"
	"github.com/matzehuels/gitlab-composer/pkg/repository"
)

// DefaultDatabase is used when no database name is configured.
const DefaultDatabase = "gitlab_composer"

const (
	passesCollection   = "passes"
	versionsCollection = "versions"
)

// passDoc summarizes one pass. Project reports are kept as JSON.
type passDoc struct {
	ID         string    `bson:"_id"`
	StartedAt  time.Time `bson:"started_at"`
	FinishedAt time.Time `bson:"finished_at"`
	Error      string    `bson:"error,omitempty"`
	Versions   int       `bson:"versions"`
	Projects   []byte    `bson:"projects"`
}

// versionDoc is one published version. Seq is its position in the pass
// that last saw it.
type versionDoc struct {
	Name              string `bson:"name"`
	VersionNormalized string `bson:"version_normalized"`
	PassID            string `bson:"pass_id"`
	Seq               int    `bson:"seq"`
	Payload           []byte `bson:"payload"`
}

// MongoStore persists catalogs in MongoDB.
type MongoStore struct {
	client   *mongo.Client
	passes   *mongo.Collection
	versions *mongo.Collection
}

// NewMongoStore connects to uri and ensures the version index exists.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = DefaultDatabase
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		passes:   db.Collection(passesCollection),
		versions: db.Collection(versionsCollection),
	}
	_, err = s.versions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}, {Key: "version_normalized", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "pass_id", Value: 1}, {Key: "seq", Value: 1}}},
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return s, nil
}

// Save upserts every version of cat, then records the pass. A reader never
// sees a pass whose versions are missing.
func (s *MongoStore) Save(ctx context.Context, cat *repository.Catalog) error {
	passID := cat.PassID.String()

	if len(cat.Versions) > 0 {
		models := make([]mongo.WriteModel, 0, len(cat.Versions))
		for i, v := range cat.Versions {
			payload, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", v.Key(), err)
			}
			doc := versionDoc{
				Name:              v.Name,
				VersionNormalized: v.VersionNormalized,
				PassID:            passID,
				Seq:               i,
				Payload:           payload,
			}
			models = append(models, mongo.NewReplaceOneModel().
				SetFilter(bson.M{"name": v.Name, "version_normalized": v.VersionNormalized}).
				SetReplacement(doc).
				SetUpsert(true))
		}
		if _, err := s.versions.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
			return fmt.Errorf("upsert versions: %w", err)
		}
	}

	projects, err := json.Marshal(cat.Projects)
	if err != nil {
		return fmt.Errorf("marshal project reports: %w", err)
	}
	doc := passDoc{
		ID:         passID,
		StartedAt:  cat.StartedAt,
		FinishedAt: cat.FinishedAt,
		Error:      cat.ErrMessage,
		Versions:   len(cat.Versions),
		Projects:   projects,
	}
	_, err = s.passes.ReplaceOne(ctx, bson.M{"_id": passID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("record pass: %w", err)
	}
	return nil
}

// Latest rebuilds the most recently finished pass.
func (s *MongoStore) Latest(ctx context.Context) (*repository.Catalog, error) {
	var pass passDoc
	err := s.passes.FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.M{"finished_at": -1})).Decode(&pass)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoCatalog
	}
	if err != nil {
		return nil, fmt.Errorf("find latest pass: %w", err)
	}

	cat := &repository.Catalog{
		StartedAt:  pass.StartedAt,
		FinishedAt: pass.FinishedAt,
		ErrMessage: pass.Error,
	}
	if err := cat.PassID.UnmarshalText([]byte(pass.ID)); err != nil {
		return nil, fmt.Errorf("pass id %q: %w", pass.ID, err)
	}
	if err := json.Unmarshal(pass.Projects, &cat.Projects); err != nil {
		return nil, fmt.Errorf("parse project reports: %w", err)
	}

	cur, err := s.versions.Find(ctx, bson.M{"pass_id": pass.ID}, options.Find().SetSort(bson.M{"seq": 1}))
	if err != nil {
		return nil, fmt.Errorf("find versions: %w", err)
	}
	var docs []versionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("read versions: %w", err)
	}
	cat.Versions = make([]composer.PackageVersion, 0, len(docs))
	for _, d := range docs {
		var v composer.PackageVersion
		if err := json.Unmarshal(d.Payload, &v); err != nil {
			return nil, fmt.Errorf("parse %s@%s: %w", d.Name, d.VersionNormalized, err)
		}
		cat.Versions = append(cat.Versions, v)
	}
	return cat, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
