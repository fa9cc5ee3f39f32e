package storage

import (
	"testing"

	"github.com/syndtr/goleveldb/leveldb"
)

func TestPersistenceStore_BasicOperations(t *testing.T) {
	// Create in-memory store
	ps, err := NewMemoryPersistenceStore()
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}
	defer ps.Close()

	key := []byte("test-key")
	value := []byte("test-value")

	if err := ps.Put(key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, found, err := ps.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("Expected key to be found")
	}
	if string(got) != string(value) {
		t.Errorf("Get returned %q, want %q", got, value)
	}

	_, found, err = ps.Get([]byte("non-existent"))
	if err != nil {
		t.Fatalf("Get non-existent failed: %v", err)
	}
	if found {
		t.Error("Expected key not to be found")
	}

	if err := ps.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	_, found, err = ps.Get(key)
	if err != nil {
		t.Fatalf("Get after delete failed: %v", err)
	}
	if found {
		t.Error("Expected key to be deleted")
	}
}

func TestPersistenceStore_Prefix(t *testing.T) {
	ps, err := NewMemoryPersistenceStore()
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}
	defer ps.Close()

	batch := new(leveldb.Batch)
	batch.Put([]byte("nf_b"), []byte{2})
	batch.Put([]byte("nf_a"), []byte{1})
	batch.Put([]byte("an_x"), []byte{3})
	batch.Put([]byte("nf"), []byte{4})
	if err := ps.Write(batch); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	kvs, err := ps.GetWithPrefix([]byte("nf_"))
	if err != nil {
		t.Fatalf("GetWithPrefix failed: %v", err)
	}
	if len(kvs) != 2 {
		t.Fatalf("GetWithPrefix returned %d pairs, want 2", len(kvs))
	}
	if string(kvs[0][0]) != "nf_a" || string(kvs[1][0]) != "nf_b" {
		t.Errorf("GetWithPrefix not in key order: %q, %q", kvs[0][0], kvs[1][0])
	}

	n, err := ps.CountPrefix([]byte("an_"))
	if err != nil {
		t.Fatalf("CountPrefix failed: %v", err)
	}
	if n != 1 {
		t.Errorf("CountPrefix = %d, want 1", n)
	}
}
