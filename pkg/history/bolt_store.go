package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

// FileName is the history database kept in the calibration data version folder
const FileName = "calibration_history.db"

// Store keeps calibration iterations in one bucket per attack
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the history database in dir
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(filepath.Join(dir, FileName), 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open calibration history")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save stores an iteration under the bucket of its attack
func (s *Store) Save(item Iteration) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(item.Attack))
		if err != nil {
			return err
		}
		data, err := json.Marshal(item)
		if err != nil {
			return err
		}
		return b.Put([]byte(item.Key()), data)
	})
}

// List returns the iterations of attack, most recent first
func (s *Store) List(attack string) ([]Iteration, error) {
	var items []Iteration
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(attack))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var item Iteration
			if err := json.Unmarshal(v, &item); err != nil {
				return errors.Wrapf(err, "corrupt history entry %s", k)
			}
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

// Attacks returns the attacks with recorded iterations
func (s *Store) Attacks() ([]string, error) {
	var attacks []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			attacks = append(attacks, string(name))
			return nil
		})
	})
	return attacks, err
}
