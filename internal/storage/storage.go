// Package storage persists ALE explanations using BoltDB.
//
// Each explanation is stored under a "name_timestamp" key together with the
// fingerprint of the inputs that produced it, so identical requests can be served
// from disk. Values are JSON, optionally zstd-compressed.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tanaysd/alibi/ale"

	"go.etcd.io/bbolt"
)

const (
	explanationsBucket = "explanations" // Bucket name for explanation records
	fingerprintsBucket = "fingerprints" // Bucket name mapping fingerprints to record keys

	// DBFile is the database file created inside the data path.
	DBFile = "ale-explanations.db"
)

// ErrNotFound is returned when no record matches a key or fingerprint.
var ErrNotFound = errors.New("storage: explanation not found")

// Record is one stored explanation.
type Record struct {
	Key         string           `json:"key"`
	Name        string           `json:"name"`
	Fingerprint uint64           `json:"fingerprint"`
	CreatedAt   time.Time        `json:"created_at"`
	Explanation *ale.Explanation `json:"explanation"`
}

// Store provides persistent storage for explanations using BoltDB.
type Store struct {
	db          *bbolt.DB
	compression string
}

// New opens (or creates) the store in dataPath. compression is "zstd" or "none";
// records written under either mode remain readable.
func New(dataPath, compression string) (*Store, error) {
	if _, err := encodeValue(compression, nil); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataPath, DBFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(explanationsBucket)); err != nil {
			return fmt.Errorf("create explanations bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(fingerprintsBucket)); err != nil {
			return fmt.Errorf("create fingerprints bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, compression: compression}, nil
}

// Close closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save stores exp under name at the given time and indexes it by fingerprint.
// It returns the record key.
func (s *Store) Save(name string, fingerprint uint64, exp *ale.Explanation, at time.Time) (string, error) {
	if name == "" {
		return "", fmt.Errorf("explanation name is required")
	}
	if exp == nil {
		return "", fmt.Errorf("explanation is nil")
	}
	if at.Before(epoch) {
		return "", fmt.Errorf("creation time %s is before the Unix epoch", at.UTC().Format(time.RFC3339))
	}

	record := Record{
		Key:         recordKey(name, at),
		Name:        name,
		Fingerprint: fingerprint,
		CreatedAt:   at.UTC(),
		Explanation: exp,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal explanation: %w", err)
	}
	value, err := encodeValue(s.compression, data)
	if err != nil {
		return "", err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(explanationsBucket)).Put([]byte(record.Key), value); err != nil {
			return err
		}
		return tx.Bucket([]byte(fingerprintsBucket)).Put(fingerprintKey(fingerprint), []byte(record.Key))
	})
	if err != nil {
		return "", err
	}
	return record.Key, nil
}

// Load returns the record stored under key.
func (s *Store) Load(key string) (Record, error) {
	var record Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(explanationsBucket)).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		var err error
		record, err = decodeRecord(v)
		return err
	})
	return record, err
}

// LoadByFingerprint returns the most recent record saved with fingerprint.
func (s *Store) LoadByFingerprint(fingerprint uint64) (Record, error) {
	var record Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket([]byte(fingerprintsBucket)).Get(fingerprintKey(fingerprint))
		if key == nil {
			return ErrNotFound
		}
		v := tx.Bucket([]byte(explanationsBucket)).Get(key)
		if v == nil {
			return ErrNotFound
		}
		var err error
		record, err = decodeRecord(v)
		return err
	})
	return record, err
}

// List returns the records saved under name within [start, end], oldest first.
// Malformed records are skipped.
func (s *Store) List(name string, start, end time.Time) ([]Record, error) {
	if end.Before(epoch) {
		return nil, nil // nothing can be stored before the epoch
	}

	var records []Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(explanationsBucket)).Cursor()

		prefix := []byte(name + "_")
		startKey := []byte(recordKey(name, start))
		endKey := []byte(recordKey(name, end))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}

			record, err := decodeRecord(v)
			if err != nil {
				continue // Skip malformed records
			}
			records = append(records, record)
		}

		return nil
	})

	return records, err
}

func decodeRecord(value []byte) (Record, error) {
	data, err := decodeValue(value)
	if err != nil {
		return Record{}, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("unmarshal explanation: %w", err)
	}
	return record, nil
}

var epoch = time.Unix(0, 0)

// recordKey zero-pads the timestamp so lexical key order is chronological.
// Pre-epoch times clamp to the epoch; Save rejects them, List bounds may use them.
func recordKey(name string, at time.Time) string {
	if at.Before(epoch) {
		at = epoch
	}
	return fmt.Sprintf("%s_%020d", name, at.UnixNano())
}

func fingerprintKey(fingerprint uint64) []byte {
	return []byte(strconv.FormatUint(fingerprint, 16))
}
