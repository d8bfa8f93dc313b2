package repository

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/gitlab-composer/pkg/integrations"
	"github.com/matzehuels/gitlab-composer/pkg/integrations/gitlab"
)

// fakeGitLab serves the subset of the v3 API used by the builder.
type fakeGitLab struct {
	t *testing.T

	mu       sync.Mutex
	projects []gitlab.Project
	branches map[int][]gitlab.Branch
	tags     map[int][]gitlab.Tag
	blobs    map[string]string // "projectID:sha" -> composer.json
	failPage int               // project page answering 500

	projectPages []int
	blobHits     map[string]int
	refRequests  map[string]int
}

func newFakeGitLab(t *testing.T) *fakeGitLab {
	return &fakeGitLab{
		t:           t,
		branches:    make(map[int][]gitlab.Branch),
		tags:        make(map[int][]gitlab.Tag),
		blobs:       make(map[string]string),
		blobHits:    make(map[string]int),
		refRequests: make(map[string]int),
	}
}

// addProject registers a project with branches name->sha and a manifest per
// sha. An empty manifest leaves the blob missing.
func (f *fakeGitLab) addProject(id int, path, defaultBranch string, branches [][2]string, manifests map[string]string) {
	f.projects = append(f.projects, gitlab.Project{
		ID:                id,
		Name:              path[strings.LastIndexByte(path, '/')+1:],
		PathWithNamespace: path,
		DefaultBranch:     defaultBranch,
		SSHURL:            "git@gitlab.test:" + path + ".git",
	})
	for _, b := range branches {
		f.branches[id] = append(f.branches[id], gitlab.Branch{
			Name:   b[0],
			Commit: gitlab.Commit{ID: b[1], CommittedDate: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		})
	}
	for sha, body := range manifests {
		f.blobs[strconv.Itoa(id)+":"+sha] = body
	}
}

func (f *fakeGitLab) addTag(id int, name, sha string) {
	f.tags[id] = append(f.tags[id], gitlab.Tag{Name: name, Commit: gitlab.Commit{ID: sha}})
}

func (f *fakeGitLab) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v3/"), "/")

	switch {
	case len(parts) == 1 && parts[0] == "projects":
		f.projectPages = append(f.projectPages, page)
		if page == f.failPage {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writePage(w, f.projects, page, perPage)

	case len(parts) == 4 && parts[2] == "repository" && parts[3] == "branches":
		id, _ := strconv.Atoi(parts[1])
		f.refRequests["branches:"+parts[1]]++
		writePage(w, f.branches[id], page, perPage)

	case len(parts) == 4 && parts[2] == "repository" && parts[3] == "tags":
		id, _ := strconv.Atoi(parts[1])
		f.refRequests["tags:"+parts[1]]++
		writePage(w, f.tags[id], page, perPage)

	case len(parts) == 5 && parts[3] == "blobs":
		key := parts[1] + ":" + parts[4]
		f.blobHits[key]++
		if r.URL.Query().Get("filepath") != "composer.json" {
			f.t.Errorf("unexpected filepath %q", r.URL.Query().Get("filepath"))
		}
		body, ok := f.blobs[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)

	default:
		http.NotFound(w, r)
	}
}

func writePage[T any](w http.ResponseWriter, items []T, page, perPage int) {
	start := (page - 1) * perPage
	if start < 0 || start >= len(items) {
		fmt.Fprint(w, "[]")
		return
	}
	end := min(start+perPage, len(items))
	json.NewEncoder(w).Encode(items[start:end])
}

func (f *fakeGitLab) blobRequests(id int, sha string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blobHits[strconv.Itoa(id)+":"+sha]
}

func (f *fakeGitLab) totalBlobRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.blobHits {
		n += c
	}
	return n
}

// start serves f and returns a GitLab client for it.
func (f *fakeGitLab) start() *gitlab.Client {
	server := httptest.NewServer(f)
	f.t.Cleanup(server.Close)

	api := integrations.NewClient(integrations.Options{
		Headers:    gitlab.Headers("test-token"),
		HTTPClient: server.Client(),
		RetryDelay: time.Millisecond,
	})
	c, err := gitlab.NewClient(api, server.URL)
	if err != nil {
		f.t.Fatal(err)
	}
	return c
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// sha builds a 40-hex commit id from a short seed.
func sha(seed string) string {
	s := fmt.Sprintf("%x", seed)
	return (s + strings.Repeat("0", 40))[:40]
}

func manifest(name string) string {
	return fmt.Sprintf(`{"name": %q, "description": "test package"}`, name)
}

func (f *fakeGitLab) refCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refRequests[key]
}

func (f *fakeGitLab) pages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.projectPages...)
}
