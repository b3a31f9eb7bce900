package patch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"strictpatch/internal/backup"
	"strictpatch/internal/config"
	"strictpatch/internal/verify"
)

func newTestSerializer(t *testing.T, maxCount int) (*Serializer, *backup.Store) {
	t.Helper()

	cfg := config.DefaultConfig()
	store, err := backup.NewStore(filepath.Join(t.TempDir(), "backups"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	exec := NewExecutor(cfg, store, verify.NewPipeline(nil))
	policy := backup.NewPolicy(store, 7*24*time.Hour, maxCount)
	s := NewSerializer(exec, policy, cfg.Patch.QueueDepth)

	t.Cleanup(func() {
		s.Close()
		store.Close()
	})
	return s, store
}

func TestSerializer_ConcurrentSubmissionsAllApply(t *testing.T) {
	s, _ := newTestSerializer(t, 100)

	const n = 10
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "marker%d\n", i)
	}
	path := filepath.Join(t.TempDir(), "target.txt")
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			_, err := s.Submit(context.Background(), &Request{
				FilePath:  path,
				OldString: fmt.Sprintf("marker%d", i),
				NewString: fmt.Sprintf("patched%d", i),
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("a submission failed: %v", err)
	}

	final := readFile(t, path)
	for i := 0; i < n; i++ {
		if !strings.Contains(final, fmt.Sprintf("patched%d", i)) {
			t.Errorf("replacement %d lost", i)
		}
		if strings.Contains(final, fmt.Sprintf("marker%d", i)) {
			t.Errorf("marker %d not replaced", i)
		}
	}
}

func TestSerializer_FailureDoesNotBlockQueue(t *testing.T) {
	s, _ := newTestSerializer(t, 100)

	path := filepath.Join(t.TempDir(), "target.txt")
	if err := os.WriteFile(path, []byte("alpha beta\n"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	_, err := s.Submit(context.Background(), &Request{
		FilePath:  path,
		OldString: "missing",
		NewString: "nope",
	})
	if !IsCode(err, CodeNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}

	res, err := s.Submit(context.Background(), &Request{
		FilePath:  path,
		OldString: "alpha",
		NewString: "gamma",
	})
	if err != nil {
		t.Fatalf("queue stalled after a failure: %v", err)
	}
	if !res.Success {
		t.Error("expected success after prior failure")
	}
	if got := readFile(t, path); got != "gamma beta\n" {
		t.Errorf("file = %q", got)
	}
}

func TestSerializer_RetentionCapsBackupCount(t *testing.T) {
	const maxCount = 10
	s, store := newTestSerializer(t, maxCount)

	path := filepath.Join(t.TempDir(), "target.txt")
	if err := os.WriteFile(path, []byte("value = 0\n"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	for i := 0; i < 15; i++ {
		_, err := s.Submit(context.Background(), &Request{
			FilePath:  path,
			OldString: fmt.Sprintf("value = %d", i),
			NewString: fmt.Sprintf("value = %d", i+1),
		})
		if err != nil {
			t.Fatalf("patch %d failed: %v", i, err)
		}
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(metas) > maxCount {
		t.Errorf("retention did not cap backups: %d > %d", len(metas), maxCount)
	}

	// Newest-first ordering
	for i := 1; i < len(metas); i++ {
		if metas[i].CreatedAt.After(metas[i-1].CreatedAt) {
			t.Errorf("backups not newest-first at index %d", i)
		}
	}
}

func TestSerializer_RestoreThroughQueue(t *testing.T) {
	s, _ := newTestSerializer(t, 100)

	original := "const x = 1;\n"
	path := filepath.Join(t.TempDir(), "target.js")
	if err := os.WriteFile(path, []byte(original), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	res, err := s.Submit(context.Background(), &Request{
		FilePath:  path,
		OldString: "const x = 1;",
		NewString: "const x = 2;",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	restored, err := s.Restore(context.Background(), res.BackupID)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restored.BackupID != res.BackupID {
		t.Errorf("restore id = %q, want %q", restored.BackupID, res.BackupID)
	}
	if got := readFile(t, path); got != original {
		t.Errorf("file = %q, want %q", got, original)
	}
}

func TestSerializer_QueueWaitRecorded(t *testing.T) {
	s, _ := newTestSerializer(t, 100)

	path := filepath.Join(t.TempDir(), "target.txt")
	if err := os.WriteFile(path, []byte("a b\n"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	res, err := s.Submit(context.Background(), &Request{
		FilePath:  path,
		OldString: "a",
		NewString: "c",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.QueueWait < 0 {
		t.Errorf("QueueWait = %v", res.QueueWait)
	}
	if res.ExecutionTime <= 0 {
		t.Errorf("ExecutionTime = %v", res.ExecutionTime)
	}
}

func TestSerializer_SubmitAfterCloseReturnsError(t *testing.T) {
	cfg := config.DefaultConfig()
	store, err := backup.NewStore(filepath.Join(t.TempDir(), "backups"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer store.Close()

	path := filepath.Join(t.TempDir(), "target.txt")
	if err := os.WriteFile(path, []byte("a b\n"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	exec := NewExecutor(cfg, store, verify.NewPipeline(nil))
	policy := backup.NewPolicy(store, time.Hour, 10)
	s := NewSerializer(exec, policy, 4)
	s.Close()
	s.Close() // second Close is a no-op

	_, err = s.Submit(context.Background(), &Request{
		FilePath:  path,
		OldString: "a",
		NewString: "c",
	})
	if !errors.Is(err, ErrSerializerClosed) {
		t.Fatalf("Submit after Close = %v, want ErrSerializerClosed", err)
	}
	if got := readFile(t, path); got != "a b\n" {
		t.Errorf("file mutated after close: %q", got)
	}

	if _, err := s.Restore(context.Background(), "any"); !errors.Is(err, ErrSerializerClosed) {
		t.Errorf("Restore after Close = %v, want ErrSerializerClosed", err)
	}
	if _, err := s.Prune(context.Background()); !errors.Is(err, ErrSerializerClosed) {
		t.Errorf("Prune after Close = %v, want ErrSerializerClosed", err)
	}
}

func TestSerializer_AbandonedRequestDoesNotMutate(t *testing.T) {
	s, _ := newTestSerializer(t, 100)

	path := filepath.Join(t.TempDir(), "target.txt")
	if err := os.WriteFile(path, []byte("alpha beta\n"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	// Feed the worker a task whose caller already gave up. It must be
	// dropped, not executed: the caller was told the request failed.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	abandoned := &task{
		kind:        taskPatch,
		ctx:         ctx,
		req:         &Request{FilePath: path, OldString: "alpha", NewString: "gamma"},
		submittedAt: time.Now(),
		done:        make(chan outcome, 1),
	}
	s.tasks <- abandoned

	out := <-abandoned.done
	if !errors.Is(out.err, context.Canceled) {
		t.Fatalf("abandoned task outcome = %v, want context.Canceled", out.err)
	}
	if got := readFile(t, path); got != "alpha beta\n" {
		t.Errorf("abandoned request mutated the file: %q", got)
	}

	// The queue keeps serving live callers afterwards
	res, err := s.Submit(context.Background(), &Request{
		FilePath:  path,
		OldString: "alpha",
		NewString: "gamma",
	})
	if err != nil || !res.Success {
		t.Fatalf("live submission after abandoned task failed: %v", err)
	}
}
