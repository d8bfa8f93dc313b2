package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/gitlab-composer/pkg/observability"
)

func quietSpinner(ctx context.Context, message string) (*Spinner, *bytes.Buffer) {
	var buf bytes.Buffer
	s := newSpinnerWithContext(ctx, message)
	s.out = &buf
	return s, &buf
}

func TestSpinnerRendersMessage(t *testing.T) {
	s, buf := quietSpinner(context.Background(), "Resolving gitlab.example.com...")
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	if !strings.Contains(buf.String(), "Resolving gitlab.example.com...") {
		t.Errorf("spinner output = %q", buf.String())
	}
	if s.Cancelled() {
		t.Error("Stop should not count as cancellation")
	}
}

func TestSpinnerWithCounts(t *testing.T) {
	counters := &observability.Counters{}
	ctx := context.Background()
	counters.OnProjectComplete(ctx, "acme/widget", "done", 3, nil)
	counters.OnProjectComplete(ctx, "acme/gadget", "skipped", 0, nil)

	s, buf := quietSpinner(ctx, "Resolving")
	s.WithCounts(counters).Start()
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	if !strings.Contains(buf.String(), "2 projects · 3 versions") {
		t.Errorf("spinner output = %q, want live counts", buf.String())
	}
}

func TestSpinnerWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, _ := quietSpinner(ctx, "Resolving")
	s.Start()

	cancel()
	time.Sleep(100 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("spinner should be cancelled after context cancellation")
	}
	s.Stop()
}

func TestSpinnerWithTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s, _ := quietSpinner(ctx, "Resolving")
	s.Start()
	time.Sleep(100 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("spinner should be cancelled after context timeout")
	}
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s, _ := quietSpinner(context.Background(), "Resolving")
	s.Start()
	s.Stop()
	s.Stop()
	s.Stop()
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	s, buf := quietSpinner(context.Background(), "Resolving")
	s.Stop()
	if buf.Len() != 0 {
		t.Errorf("unstarted spinner wrote %q", buf.String())
	}
}

func TestSpinnerStopWithMessages(t *testing.T) {
	s, _ := quietSpinner(context.Background(), "Resolving")
	s.Start()
	s.StopWithSuccess("Resolved 3 versions")

	s, _ = quietSpinner(context.Background(), "Resolving")
	s.Start()
	s.StopWithError("Pass ended early")
}
