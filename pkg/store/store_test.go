package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/matzehuels/gitlab-composer/pkg/composer"
	"github.com/matzehuels/gitlab-composer/pkg/repository"
)

const sha = "0123456789abcdef0123456789abcdef01234567"

func testCatalog() *repository.Catalog {
	started := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	return &repository.Catalog{
		PassID:     uuid.New(),
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Versions: []composer.PackageVersion{
			{
				Name:              "acme/widget",
				Version:           "dev-master",
				VersionNormalized: composer.DevMaster,
				IsDevelopment:     true,
				Source:            composer.Source{Type: "git", URL: "git@gitlab.example.com:acme/widget.git", Reference: sha},
				Dist:              &composer.Dist{Type: "zip", URL: "https://gitlab.example.com/api/v3/projects/1/repository/archive.zip?sha=" + sha, Reference: sha},
				Time:              "2024-01-15T10:00:00Z",
				Extra:             map[string]json.RawMessage{"description": json.RawMessage(`"A widget"`)},
			},
			{
				Name:              "acme/widget",
				Version:           "2.x-dev",
				VersionNormalized: "2.9999999.9999999.9999999-dev",
				Source:            composer.Source{Type: "git", URL: "git@gitlab.example.com:acme/widget.git", Reference: sha},
			},
		},
		Projects: []repository.ProjectReport{
			{Project: "acme/widget", Package: "acme/widget", State: repository.StateDone, Versions: 2},
			{Project: "acme/empty", State: repository.StateSkipped, Reason: "MANIFEST_ABSENT: no manifest"},
		},
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.Latest(ctx); !errors.Is(err, ErrNoCatalog) {
		t.Fatalf("Latest on empty store error = %v, want ErrNoCatalog", err)
	}

	want := testCatalog()
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	got, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest error: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Latest mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStoreReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	first := testCatalog()
	second := testCatalog()
	second.Versions = second.Versions[:1]
	second.ErrMessage = "listing projects page 2: TRANSPORT_ERROR: HTTP 500"

	for _, c := range []*repository.Catalog{first, second} {
		if err := s.Save(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Latest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.PassID != second.PassID || len(got.Versions) != 1 {
		t.Errorf("Latest = pass %s with %d versions, want the second pass", got.PassID, len(got.Versions))
	}
	if got.Complete() {
		t.Error("a partial pass should not read back as complete")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != FileName {
		t.Errorf("store dir holds %v, want only %s", entries, FileName)
	}
}

func TestFileStoreCorruptSnapshot(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path(), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = s.Latest(context.Background())
	if err == nil || errors.Is(err, ErrNoCatalog) {
		t.Errorf("Latest error = %v, want a parse error", err)
	}
}

func TestOpenDefaultsToFileStore(t *testing.T) {
	s, err := Open(context.Background(), t.TempDir(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*FileStore); !ok {
		t.Errorf("Open without mongo URI = %T, want *FileStore", s)
	}
	if _, err := NewFileStore(""); err == nil {
		t.Error("NewFileStore(\"\") should fail")
	}
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	ctx := context.Background()
	db := "gitlab_composer_test_" + uuid.NewString()[:8]
	s, err := NewMongoStore(ctx, uri, db)
	if err != nil {
		t.Fatalf("NewMongoStore error: %v", err)
	}
	defer func() {
		s.client.Database(db).Drop(ctx)
		s.Close()
	}()

	if _, err := s.Latest(ctx); !errors.Is(err, ErrNoCatalog) {
		t.Fatalf("Latest on empty store error = %v, want ErrNoCatalog", err)
	}

	first := testCatalog()
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	second := testCatalog()
	second.StartedAt = first.FinishedAt
	second.FinishedAt = first.FinishedAt.Add(time.Second)
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest error: %v", err)
	}
	if diff := cmp.Diff(second, got); diff != "" {
		t.Errorf("Latest mismatch (-want +got):\n%s", diff)
	}

	n, err := s.versions.CountDocuments(ctx, map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(second.Versions)) {
		t.Errorf("versions collection has %d documents, want %d upserted", n, len(second.Versions))
	}
}
