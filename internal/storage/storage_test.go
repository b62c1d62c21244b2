package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tanaysd/alibi/ale"
	"github.com/tanaysd/alibi/predictor"

	"go.etcd.io/bbolt"
	"gonum.org/v1/gonum/mat"
)

func testExplanation(t *testing.T) *ale.Explanation {
	t.Helper()
	X := mat.NewDense(6, 2, []float64{
		0, 1,
		1, 3,
		2, 2,
		3, 5,
		4, 4,
		5, 6,
	})
	explainer, err := ale.NewExplainer(predictor.NewLinear(1, 2, -1), ale.Config{
		FeatureNames: []string{"x", "y"},
	})
	if err != nil {
		t.Fatalf("Failed to create explainer: %v", err)
	}
	exp, err := explainer.Explain(context.Background(), X, nil)
	if err != nil {
		t.Fatalf("Failed to explain: %v", err)
	}
	return exp
}

func newTestStore(t *testing.T, compression string) *Store {
	t.Helper()
	store, err := New(t.TempDir(), compression)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew(t *testing.T) {
	tempDir := t.TempDir()

	store, err := New(tempDir, "zstd")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if store.db == nil {
		t.Error("Store database is nil")
	}

	// Check if database file was created
	dbPath := filepath.Join(tempDir, DBFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNew_InvalidPath(t *testing.T) {
	invalidPath := filepath.Join(t.TempDir(), "missing", "nested")

	_, err := New(invalidPath, "zstd")
	if err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
}

func TestNew_InvalidCompression(t *testing.T) {
	_, err := New(t.TempDir(), "brotli")
	if err == nil {
		t.Error("Expected error for unknown compression, got nil")
	}
}

func TestStore_Close(t *testing.T) {
	store, err := New(t.TempDir(), "none")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("Error closing store: %v", err)
	}

	// Test closing already closed store
	if err := store.Close(); err != nil {
		t.Errorf("Error closing already closed store: %v", err)
	}
}

func TestStore_CloseNilDB(t *testing.T) {
	store := &Store{db: nil}
	if err := store.Close(); err != nil {
		t.Errorf("Expected no error for nil db, got: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, compression := range []string{"zstd", "none"} {
		t.Run(compression, func(t *testing.T) {
			store := newTestStore(t, compression)
			exp := testExplanation(t)
			at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

			key, err := store.Save("pricing", 42, exp, at)
			if err != nil {
				t.Fatalf("Failed to save explanation: %v", err)
			}

			record, err := store.Load(key)
			if err != nil {
				t.Fatalf("Failed to load explanation: %v", err)
			}

			if record.Name != "pricing" {
				t.Errorf("Expected name pricing, got %s", record.Name)
			}
			if record.Fingerprint != 42 {
				t.Errorf("Expected fingerprint 42, got %d", record.Fingerprint)
			}
			if !record.CreatedAt.Equal(at) {
				t.Errorf("Expected CreatedAt %v, got %v", at, record.CreatedAt)
			}
			if record.Explanation == nil {
				t.Fatal("Loaded explanation is nil")
			}

			want := exp.Features()
			got := record.Explanation.Features()
			if len(got) != len(want) {
				t.Fatalf("Expected %d features, got %d", len(want), len(got))
			}
			for i := range want {
				wantCurve, gotCurve := want[i].ALE(0), got[i].ALE(0)
				if len(wantCurve) != len(gotCurve) {
					t.Fatalf("Feature %d: expected %d ALE values, got %d", i, len(wantCurve), len(gotCurve))
				}
				for k := range wantCurve {
					if wantCurve[k] != gotCurve[k] {
						t.Errorf("Feature %d edge %d: expected %v, got %v", i, k, wantCurve[k], gotCurve[k])
					}
				}
			}
		})
	}
}

func TestSave_Validation(t *testing.T) {
	store := newTestStore(t, "zstd")

	if _, err := store.Save("", 1, testExplanation(t), time.Now()); err == nil {
		t.Error("Expected error for empty name")
	}
	if _, err := store.Save("model", 1, nil, time.Now()); err == nil {
		t.Error("Expected error for nil explanation")
	}
	if _, err := store.Save("model", 1, testExplanation(t), time.Date(1969, 7, 20, 20, 17, 0, 0, time.UTC)); err == nil {
		t.Error("Expected error for a pre-epoch creation time")
	}
}

func TestList_PreEpochBounds(t *testing.T) {
	store := newTestStore(t, "zstd")
	now := time.Now()

	for i := 0; i < 3; i++ {
		if _, err := store.Save("model", uint64(i), testExplanation(t), now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
	}

	records, err := store.List("model", time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records from a pre-epoch start, got %d", len(records))
	}
	for i, record := range records {
		if record.Fingerprint != uint64(i) {
			t.Errorf("Expected records in time order, got fingerprint %d at %d", record.Fingerprint, i)
		}
	}

	records, err = store.List("model", time.Time{}, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Failed to list from the zero time: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("Expected 3 records from the zero time, got %d", len(records))
	}

	records, err = store.List("model", time.Time{}, time.Date(1965, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Failed to list a pre-epoch range: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records before the epoch, got %d", len(records))
	}
}

func TestLoad_NotFound(t *testing.T) {
	store := newTestStore(t, "zstd")

	_, err := store.Load("missing_00000000000000000001")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	_, err = store.LoadByFingerprint(7)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for fingerprint, got %v", err)
	}
}

func TestLoadByFingerprint_ReturnsLatest(t *testing.T) {
	store := newTestStore(t, "zstd")
	exp := testExplanation(t)
	base := time.Now()

	if _, err := store.Save("model", 99, exp, base); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	latest, err := store.Save("model", 99, exp, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	record, err := store.LoadByFingerprint(99)
	if err != nil {
		t.Fatalf("Failed to load by fingerprint: %v", err)
	}
	if record.Key != latest {
		t.Errorf("Expected latest key %s, got %s", latest, record.Key)
	}
}

func TestList(t *testing.T) {
	store := newTestStore(t, "zstd")
	exp := testExplanation(t)
	now := time.Now()

	// Store records for two models at different times
	for i := 0; i < 5; i++ {
		at := now.Add(time.Duration(i) * time.Minute)
		if _, err := store.Save("churn", uint64(i), exp, at); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
		if _, err := store.Save("churn-v2", uint64(100+i), exp, at); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
	}

	records, err := store.List("churn", now.Add(time.Minute), now.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	for i, record := range records {
		if record.Name != "churn" {
			t.Errorf("Expected only churn records, got %s", record.Name)
		}
		if record.Fingerprint != uint64(i+1) {
			t.Errorf("Expected records in time order, got fingerprint %d at %d", record.Fingerprint, i)
		}
	}
}

func TestList_SkipsMalformedRecords(t *testing.T) {
	store := newTestStore(t, "zstd")
	now := time.Now()

	if _, err := store.Save("model", 1, testExplanation(t), now); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	// Write a corrupted record directly
	err := store.db.Update(func(tx *bbolt.Tx) error {
		key := recordKey("model", now.Add(time.Second))
		return tx.Bucket([]byte(explanationsBucket)).Put([]byte(key), []byte("zgarbage"))
	})
	if err != nil {
		t.Fatalf("Failed to write corrupted record: %v", err)
	}

	records, err := store.List("model", now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected corrupted record to be skipped, got %d records", len(records))
	}
}

func TestCompressionModesInteroperate(t *testing.T) {
	dir := t.TempDir()
	exp := testExplanation(t)

	store, err := New(dir, "none")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	key, err := store.Save("model", 5, exp, time.Now())
	if err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	store.Close()

	store, err = New(dir, "zstd")
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer store.Close()

	if _, err := store.Load(key); err != nil {
		t.Errorf("Expected uncompressed record to load under zstd mode, got %v", err)
	}
}

func TestEncodeValue(t *testing.T) {
	payload := []byte(`{"feature_values":[0,1,2,3,4,5,6,7,8,9],"ale_values":[[0,0,0,0,0,0,0,0,0,0]]}`)

	for _, mode := range []string{"zstd", "none"} {
		encoded, err := encodeValue(mode, payload)
		if err != nil {
			t.Fatalf("%s: encode failed: %v", mode, err)
		}
		decoded, err := decodeValue(encoded)
		if err != nil {
			t.Fatalf("%s: decode failed: %v", mode, err)
		}
		if string(decoded) != string(payload) {
			t.Errorf("%s: payload changed after decode", mode)
		}
	}

	if _, err := decodeValue(nil); err == nil {
		t.Error("Expected error for empty value")
	}
	if _, err := decodeValue([]byte("?data")); err == nil {
		t.Error("Expected error for unknown header")
	}
}
