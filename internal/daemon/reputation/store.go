package reputation

import (
	"encoding/binary"
	"math"
	"time"

	bbolt "go.etcd.io/bbolt"
)

var bucketScores = []byte("scores")

// Store persists reputation snapshots across restarts using bbolt. The
// engine loads the snapshot at init and saves at deinit.
type Store struct {
	db *bbolt.DB
}

// OpenStore opens (or creates) the snapshot database at path.
func OpenStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketScores)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Load reads the persisted snapshot.
func (s *Store) Load() (map[string]float64, error) {
	out := map[string]float64{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketScores)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if len(v) == 8 {
				out[string(k)] = math.Float64frombits(binary.LittleEndian.Uint64(v))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save replaces the persisted snapshot with the given table.
func (s *Store) Save(scores map[string]float64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketScores); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket(bucketScores)
		if err != nil {
			return err
		}
		for peer, score := range scores {
			// Put retains the value slice until the transaction commits,
			// so each entry needs its own backing array.
			buf := make([]byte, 8)
			binary.LittleEndian.PutUint64(buf, math.Float64bits(score))
			if err := b.Put([]byte(peer), buf); err != nil {
				return err
			}
		}
		return nil
	})
}
