// Package registry keeps a history of training runs in a BoltDB file.
//
// Each run stores the paths it used, its hyperparameters and its evaluation
// metrics, keyed by start time so listing returns runs in chronological
// order.
package registry

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

const runsBucket = "runs" // Bucket name for storing run records

// Run is one recorded training run.
type Run struct {
	StartedAt     time.Time `json:"started_at"`
	Duration      float64   `json:"duration_seconds"`
	TrainDataPath string    `json:"train_data_path"`
	TestDataPath  string    `json:"test_data_path"`
	ModelPath     string    `json:"model_path"`
	Seed          uint64    `json:"seed"`
	NumTrees      int       `json:"num_trees"`
	NumLeaves     int       `json:"num_leaves"`
	LearningRate  float64   `json:"learning_rate"`
	RSquared      float64   `json:"r_squared"`
	RMS           float64   `json:"rms"`
	Prediction    float32   `json:"canonical_prediction"`
}

// Store provides persistent storage for run records using BoltDB.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.NewIOError("open", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create runs bucket")
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores run. Runs with the same start time overwrite each other.
func (s *Store) Record(run Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return errors.Wrap(err, "marshal run")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).Put(runKey(run.StartedAt), data)
	})
}

// List returns up to limit of the most recent runs, oldest first. limit <= 0
// returns every run.
func (s *Store) List(limit int) ([]Run, error) {
	var runs []Run
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return errors.Wrapf(err, "decode run %x", k)
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	return runs, nil
}

// runKey orders keys by time; big-endian nanoseconds sort bytewise.
func runKey(t time.Time) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(t.UnixNano()))
	return key
}
