// Package storage persists the records of evaluation runs in BoltDB so an
// interrupted run keeps every completed outer fold, and a finished run can
// be re-aggregated without recomputation.
//
// Layout: bucket "runs" maps run ID to RunInfo JSON; bucket "records" holds
// one nested bucket per run whose keys sort by trial, pipeline and fold.
package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/YuminosukeSato/radcv/pipeline"
	"github.com/YuminosukeSato/radcv/pkg/errors"
)

const (
	runsBucket    = "runs"
	recordsBucket = "records"

	foldPrefix    = "fold/"
	holdoutPrefix = "holdout/"
)

// Run status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// RunInfo describes one evaluation run.
type RunInfo struct {
	ID         string    `json:"id"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished,omitempty"`
	Status     string    `json:"status"`
	Metric     string    `json:"metric"`
	DataPath   string    `json:"data_path,omitempty"`
	Trials     int       `json:"trials"`
	Candidates []string  `json:"candidates"`
	Error      string    `json:"error,omitempty"`
}

// Store is a BoltDB-backed record store. It is safe for concurrent use.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open record store %s", path)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{runsBucket, recordsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return errors.Wrapf(err, "create %s bucket", name)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// CreateRun registers a new run. The ID must be unused.
func (s *Store) CreateRun(info RunInfo) error {
	if info.ID == "" {
		return errors.NewValueError("storage.CreateRun", "empty run id")
	}
	if info.Status == "" {
		info.Status = StatusRunning
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket([]byte(runsBucket))
		if runs.Get([]byte(info.ID)) != nil {
			return errors.NewValueError("storage.CreateRun", "run "+info.ID+" already exists")
		}
		if _, err := tx.Bucket([]byte(recordsBucket)).CreateBucket([]byte(info.ID)); err != nil {
			return errors.Wrapf(err, "create records of run %s", info.ID)
		}
		return putJSON(runs, info.ID, info)
	})
}

// FinishRun sets the final status of a run. A non-nil runErr is kept as
// the run's error message.
func (s *Store) FinishRun(id, status string, runErr error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket([]byte(runsBucket))
		info, err := getRun(runs, id)
		if err != nil {
			return err
		}
		info.Status = status
		info.Finished = time.Now().UTC()
		if runErr != nil {
			info.Error = runErr.Error()
		}
		return putJSON(runs, id, info)
	})
}

// Run returns the description of run id.
func (s *Store) Run(id string) (RunInfo, error) {
	var info RunInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		info, err = getRun(tx.Bucket([]byte(runsBucket)), id)
		return err
	})
	return info, err
}

// Runs lists every run, most recent first.
func (s *Store) Runs() ([]RunInfo, error) {
	var out []RunInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(k, v []byte) error {
			var info RunInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return errors.Wrapf(err, "decode run %s", k)
			}
			out = append(out, info)
			return nil
		})
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Started.After(out[j].Started) })
	return out, err
}

// SaveFold stores an outer-fold record. Saving the same trial, pipeline
// and fold again overwrites it.
func (s *Store) SaveFold(run string, rec pipeline.TrialRecord) error {
	return s.put(run, foldKey(rec), rec)
}

// SaveHoldout stores a hold-out record.
func (s *Store) SaveHoldout(run string, rec pipeline.HoldoutRecord) error {
	return s.put(run, holdoutKey(rec), rec)
}

func (s *Store) put(run, key string, v interface{}) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(recordsBucket)).Bucket([]byte(run))
		if b == nil {
			return errors.Wrap(ErrRunNotFound, run)
		}
		return putJSON(b, key, v)
	})
}

// Report rebuilds the TrialReport of a run from its stored records.
func (s *Store) Report(run string) (*pipeline.TrialReport, error) {
	var info RunInfo
	var folds []pipeline.TrialRecord
	var holdouts []pipeline.HoldoutRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		if info, err = getRun(tx.Bucket([]byte(runsBucket)), run); err != nil {
			return err
		}
		b := tx.Bucket([]byte(recordsBucket)).Bucket([]byte(run))
		if b == nil {
			return errors.Wrap(ErrRunNotFound, run)
		}
		return b.ForEach(func(k, v []byte) error {
			switch key := string(k); {
			case strings.HasPrefix(key, foldPrefix):
				var rec pipeline.TrialRecord
				if err := json.Unmarshal(v, &rec); err != nil {
					return errors.Wrapf(err, "decode %s", key)
				}
				folds = append(folds, rec)
			case strings.HasPrefix(key, holdoutPrefix):
				var rec pipeline.HoldoutRecord
				if err := json.Unmarshal(v, &rec); err != nil {
					return errors.Wrapf(err, "decode %s", key)
				}
				holdouts = append(holdouts, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return pipeline.NewTrialReportFrom(info.Metric, folds, holdouts), nil
}

// DeleteRun removes a run and its records.
func (s *Store) DeleteRun(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket([]byte(runsBucket))
		if runs.Get([]byte(id)) == nil {
			return errors.Wrap(ErrRunNotFound, id)
		}
		if err := tx.Bucket([]byte(recordsBucket)).DeleteBucket([]byte(id)); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		return runs.Delete([]byte(id))
	})
}

func foldKey(r pipeline.TrialRecord) string {
	return fmt.Sprintf("%s%06d/%s/%04d", foldPrefix, r.Trial, r.Pipeline, r.OuterFold)
}

func holdoutKey(r pipeline.HoldoutRecord) string {
	return fmt.Sprintf("%s%06d", holdoutPrefix, r.Trial)
}

func getRun(b *bbolt.Bucket, id string) (RunInfo, error) {
	var info RunInfo
	v := b.Get([]byte(id))
	if v == nil {
		return info, errors.Wrap(ErrRunNotFound, id)
	}
	if err := json.Unmarshal(v, &info); err != nil {
		return info, errors.Wrapf(err, "decode run %s", id)
	}
	return info, nil
}

func putJSON(b *bbolt.Bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", key)
	}
	return b.Put([]byte(key), data)
}
