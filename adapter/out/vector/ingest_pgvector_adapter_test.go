package vector

import (
	"context"
	"io"
	"sync"
	"testing"

	"ingest_server/pkg/apperr"
	"ingest_server/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.LevelError, Output: io.Discard})
}

func TestInsertRejectsWrongDimension(t *testing.T) {
	adapter := NewPGVectorAdapter(nil, 8, 16, testLogger())

	err := adapter.Insert(context.Background(), "someone", []float32{1, 2, 3}, nil)
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected VALIDATION error, got %v", err)
	}
}

func TestEnsureCollectionIsOncePerName(t *testing.T) {
	// A nil pool panics on any DDL attempt, so passing this test
	// proves an already-created collection never reaches the database
	// again, even under concurrent callers.
	adapter := NewPGVectorAdapter(nil, 8, 16, testLogger())
	adapter.created.Store("jamie_at_example_dot_com", struct{}{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := adapter.EnsureCollection(context.Background(), "jamie_at_example_dot_com"); err != nil {
				t.Errorf("ensure of a known collection must be a no-op: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestLockForIsStablePerName(t *testing.T) {
	adapter := NewPGVectorAdapter(nil, 8, 16, testLogger())

	a := adapter.lockFor("jamie_at_example_dot_com")
	b := adapter.lockFor("jamie_at_example_dot_com")
	if a != b {
		t.Error("the same collection must always map to the same lock")
	}
}
