// Package pipeline runs extraction batches: one state machine pass per source,
// strictly in input order, over a worker leased from the session.
package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/przemyslawpluta/extractd/internal/classify"
	"github.com/przemyslawpluta/extractd/internal/config"
	"github.com/przemyslawpluta/extractd/internal/engine"
	"github.com/przemyslawpluta/extractd/internal/log"
	"github.com/przemyslawpluta/extractd/internal/metrics"
	"github.com/przemyslawpluta/extractd/internal/output"
	"github.com/przemyslawpluta/extractd/internal/planner"
	"github.com/przemyslawpluta/extractd/internal/policy"
	"github.com/przemyslawpluta/extractd/internal/session"
	"github.com/przemyslawpluta/extractd/internal/verify"
	"github.com/przemyslawpluta/extractd/pkg/types"
)

// overwriteInPlace rewrites tags without leaving a backup copy of the preview.
const overwriteInPlace = "-overwrite_original_in_place"

type Pipeline struct {
	session          *session.Session
	collision        *policy.CollisionResolver
	output           *output.Materializer
	verifier         *verify.Verifier
	verifyEnabled    bool
	logger           *log.Logger
	tempDir          string
	progressCallback ProgressCallback
}

func New(cfg *config.Config, sess *session.Session) (*Pipeline, error) {
	logger, err := log.New(cfg.LogFile, cfg.LogJSON, true)
	if err != nil {
		return nil, err
	}
	// Library callers stay quiet; the binaries opt in with SetConsole.
	logger.SetConsole(io.Discard)

	p := &Pipeline{
		session:       sess,
		collision:     policy.NewCollisionResolver(nil),
		verifier:      verify.New(cfg.VerifyOrientation),
		verifyEnabled: cfg.VerifyOrientation,
		logger:        logger,
		tempDir:       os.TempDir(),
	}
	p.output = output.New(p.cleanupFailed)

	return p, nil
}

func (p *Pipeline) SetProgressCallback(cb ProgressCallback) {
	p.progressCallback = cb
}

// SetConsole redirects the progress line and batch summary.
func (p *Pipeline) SetConsole(w io.Writer) {
	p.logger.SetConsole(w)
}

// SetSuffixFunc replaces the generator used for collision suffixes.
func (p *Pipeline) SetSuffixFunc(fn policy.SuffixFunc) {
	p.collision = policy.NewCollisionResolver(fn)
}

// batch is the state of one Run call.
type batch struct {
	runID    string
	opts     types.Options
	planner  *planner.Planner
	supplied engine.Worker
	lease    *session.Lease
	leaseErr error
}

// Run processes sources in order and shapes the results. supplied, when not
// nil, is used instead of an ephemeral worker and is left running.
func (p *Pipeline) Run(sources []string, opts types.Options, supplied engine.Worker) (*types.Output, error) {
	if len(sources) == 0 {
		return nil, types.ErrNoSources
	}

	startTime := time.Now()
	opts = opts.Normalize(p.tempDir)

	b := &batch{
		runID:    uuid.New().String(),
		opts:     opts,
		planner:  planner.New(opts.Destination),
		supplied: supplied,
	}
	defer p.release(b)

	metrics.BatchesTotal.Inc()
	p.logger.Info("Starting batch " + b.runID + ": " + strconv.Itoa(len(sources)) + " sources")

	// A persistent session is established up front so that status reflects
	// it even when no item reaches the engine.
	if opts.Persist {
		p.acquire(b)
	}

	summary := &types.BatchSummary{
		RunID:     b.runID,
		Total:     len(sources),
		StartTime: startTime,
	}

	results := make([]types.Result, 0, len(sources))
	for i, source := range sources {
		itemStart := time.Now()
		result := p.process(b, source)
		elapsed := time.Since(itemStart)

		results = append(results, result)
		p.logger.LogResult(result, elapsed)
		p.logger.Progress(i+1, len(sources), filepath.Base(source))
		metrics.ItemDuration.Observe(elapsed.Seconds())

		update := ProgressUpdate{
			Type:    UpdateItem,
			RunID:   b.runID,
			Current: i + 1,
			Total:   len(sources),
			Source:  result.Source,
		}
		if result.OK() {
			summary.Succeeded++
			metrics.ItemsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
			update.Preview = result.Preview.Path
		} else {
			summary.Failed++
			metrics.ItemsTotal.WithLabelValues(string(result.Kind)).Inc()
			update.Error = result.Error
		}
		p.notify(update)
	}

	summary.EndTime = time.Now()
	summary.Duration = summary.EndTime.Sub(startTime)
	p.logger.Summary(*summary)

	p.notify(ProgressUpdate{
		Type:    UpdateComplete,
		RunID:   b.runID,
		Current: len(sources),
		Total:   len(sources),
		Summary: summary,
	})

	return types.NewOutput(results, opts.Compact), nil
}

// process runs the extraction state machine for one source. The first failure
// ends the item.
func (p *Pipeline) process(b *batch, source string) types.Result {
	task, err := b.planner.Plan(source)
	if err != nil {
		return classify.Read(err).Result(source)
	}
	resolved := task.Source.Path()

	// The reservation holds the name until this item is done with it; by then
	// either the preview file exists or the item failed.
	collision := p.collision
	res := collision.Resolve(resolved, task.DestPath)
	defer collision.Release(res.DestPath)
	task.DestPath = res.DestPath
	task.Renamed = res.Renamed

	if _, err := os.Stat(resolved); err != nil {
		if f, ok := classify.Probe(err); ok {
			return f.Result(resolved)
		}
	}

	w, err := p.acquire(b)
	if err != nil {
		return classify.Read(err).Result(resolved)
	}

	tags, err := w.Read(resolved)
	if err != nil {
		return classify.Read(err).Result(resolved)
	}

	tag, ok := tags.PreviewTag()
	if !ok {
		return classify.NoPreview().Result(resolved)
	}
	task.Tag = tag

	code, present, numeric := tags.Orientation()
	if numeric {
		task.Orientation = code
	}

	if b.opts.Base64 && (!present || (numeric && code == engine.OrientationNormal)) {
		data, err := w.ExtractPreviewBuffer(task.Tag, resolved)
		if err != nil {
			return classify.Extract(err, task.DestPath).Result(resolved)
		}
		preview, err := p.output.Materialize(output.Artifact{Data: data}, b.opts)
		if err != nil {
			return classify.Extract(err, task.DestPath).Result(resolved)
		}
		return types.Result{Preview: preview, Source: resolved}
	}

	if err := os.MkdirAll(filepath.Dir(task.DestPath), 0755); err != nil {
		return classify.Creating(task.DestPath).Result(resolved)
	}

	if err := w.ExtractPreview(task.Tag, resolved, task.DestPath); err != nil {
		return classify.Extract(err, task.DestPath).Result(resolved)
	}

	oriented := p.writeOrientation(w, task, present && numeric)

	if p.verifyEnabled {
		expected := 0
		if oriented {
			expected = task.Orientation
		}
		if err := p.verifier.Verify(task.DestPath, expected); err != nil {
			p.output.Discard(task.DestPath)
			return classify.Extract(err, task.DestPath).Result(resolved)
		}
	}

	preview, err := p.output.Materialize(output.Artifact{Path: task.DestPath}, b.opts)
	if err != nil {
		p.output.Discard(task.DestPath)
		return classify.Extract(err, task.DestPath).Result(resolved)
	}

	return types.Result{Preview: preview, Source: resolved}
}

// writeOrientation copies the source orientation onto the extracted preview.
// Failures are logged and the item stays successful.
func (p *Pipeline) writeOrientation(w engine.Worker, task types.ExtractTask, apply bool) bool {
	if !apply {
		return false
	}

	label, ok := engine.OrientationLabel(task.Orientation)
	if !ok {
		p.logger.Warn(fmt.Sprintf("unknown orientation %d: %s", task.Orientation, task.Source.Path()), nil)
		return false
	}

	err := w.WriteTags(task.DestPath, map[string]string{"Orientation": label}, overwriteInPlace)
	if err != nil {
		metrics.OrientationWriteFailures.Inc()
		p.logger.Warn("orientation not written: "+task.DestPath, classify.Write(err))
		return false
	}
	return true
}

// acquire leases a worker the first time an item needs one. A failed start is
// remembered and reported by every later item of the batch.
func (p *Pipeline) acquire(b *batch) (engine.Worker, error) {
	if b.lease != nil {
		return b.lease.Worker, nil
	}
	if b.leaseErr != nil {
		return nil, b.leaseErr
	}

	lease, err := p.session.Acquire(b.opts.Persist, b.supplied)
	if err != nil {
		b.leaseErr = err
		p.logger.Error("Failed to start exiftool", err)
		return nil, err
	}
	b.lease = lease
	return lease.Worker, nil
}

func (p *Pipeline) release(b *batch) {
	if err := p.session.Release(b.lease); err != nil {
		p.logger.Error("Failed to end exiftool", err)
	}
}

func (p *Pipeline) notify(update ProgressUpdate) {
	if p.progressCallback != nil {
		p.progressCallback(update)
	}
}

func (p *Pipeline) cleanupFailed(path string, err error) {
	metrics.CleanupFailures.Inc()
	p.logger.Error("Failed to remove temporary preview "+path, err)
}

func (p *Pipeline) Close() error {
	return p.logger.Close()
}
