package storage

import (
	"errors"
	"testing"
)

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := db.Put([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "v1" {
		t.Fatalf("expected v1, got %q", value)
	}

	// Stored values must not alias caller buffers.
	value[0] = 'X'
	again, _ := db.Get([]byte("k"))
	if string(again) != "v1" {
		t.Fatalf("stored value mutated through returned slice: %q", again)
	}

	has, err := db.Has([]byte("k"))
	if err != nil || !has {
		t.Fatalf("expected key present, has=%v err=%v", has, err)
	}
	has, _ = db.Has([]byte("missing"))
	if has {
		t.Fatalf("expected missing key absent")
	}
}

func TestBatchWriteAppliesAllEntries(t *testing.T) {
	db := NewMemDB()

	key := []byte("k1")
	value := []byte("v1")
	batch := new(Batch)
	batch.Put(key, value)
	batch.Put([]byte("k2"), []byte("v2"))
	// Batch entries must not alias caller buffers.
	key[0] = 'X'
	value[0] = 'X'
	if batch.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", batch.Len())
	}

	if err := db.Write(batch); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := db.Get([]byte("k1"))
	if err != nil || string(got) != "v1" {
		t.Fatalf("get k1: %q %v", got, err)
	}
	got, err = db.Get([]byte("k2"))
	if err != nil || string(got) != "v2" {
		t.Fatalf("get k2: %q %v", got, err)
	}
}

func TestLevelDBRoundTrip(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	defer db.Close()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err := db.Get([]byte("k"))
	if err != nil || string(value) != "v" {
		t.Fatalf("get: %q %v", value, err)
	}
	has, err := db.Has([]byte("k"))
	if err != nil || !has {
		t.Fatalf("expected key present, has=%v err=%v", has, err)
	}

	batch := new(Batch)
	batch.Put([]byte("b1"), []byte("x"))
	batch.Put([]byte("b2"), []byte("y"))
	if err := db.Write(batch); err != nil {
		t.Fatalf("batch write: %v", err)
	}
	value, err = db.Get([]byte("b2"))
	if err != nil || string(value) != "y" {
		t.Fatalf("get after batch: %q %v", value, err)
	}
}
