package storage

import (
	"time"

	"github.com/YuminosukeSato/radcv/pipeline"
	"github.com/YuminosukeSato/radcv/pkg/log"
)

// Recorder writes records of one run to a Store as they complete. Write
// errors are logged; they never stop the evaluation.
type Recorder struct {
	store  *Store
	run    string
	logger log.Logger
}

// Recorder returns a pipeline.Observer that persists records of run.
func (s *Store) Recorder(run string, logger log.Logger) *Recorder {
	return &Recorder{store: s, run: run, logger: log.OrDefault(logger, "storage")}
}

// FoldDone implements pipeline.Observer.
func (r *Recorder) FoldDone(rec pipeline.TrialRecord, _ time.Duration) {
	if err := r.store.SaveFold(r.run, rec); err != nil {
		r.logger.Error("failed to store fold record", err,
			log.RunIDKey, r.run,
			log.TrialKey, rec.Trial,
			log.OuterFoldKey, rec.OuterFold,
			log.PipelineKey, rec.Pipeline,
		)
	}
}

// HoldoutDone implements pipeline.Observer.
func (r *Recorder) HoldoutDone(rec pipeline.HoldoutRecord, _ time.Duration) {
	if err := r.store.SaveHoldout(r.run, rec); err != nil {
		r.logger.Error("failed to store hold-out record", err,
			log.RunIDKey, r.run,
			log.TrialKey, rec.Trial,
		)
	}
}

var _ pipeline.Observer = (*Recorder)(nil)
