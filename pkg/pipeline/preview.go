package pipeline

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/joeFPV99/SEEGPlanner/pkg/segment"
	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// PreviewWorker computes threshold previews off the caller's goroutine for
// interactive use. Submissions are debounced: a burst of slider moves
// collapses into one computation of the newest window. At most one preview
// is computed at a time and only the newest result is delivered; a result
// superseded by a later submission is discarded silently, never reported as
// an error.
//
// Callbacks run on the worker's goroutine and must return promptly.
type PreviewWorker struct {
	source *volume.VolumeBuffer
	delay  time.Duration

	onResult func(thresholdMin, thresholdMax float64, labels *volume.VolumeBuffer)
	onError  func(error)

	mu      sync.Mutex
	idle    *sync.Cond
	seq     uint64
	pending *previewRequest
	timer   *time.Timer
	running bool
}

type previewRequest struct {
	min, max float64
	seq      uint64
}

// NewPreviewWorker creates a worker segmenting the given source volume,
// usually the controller's processed volume. Results and errors are pushed
// through the two required callbacks after the debounce delay.
func NewPreviewWorker(source *volume.VolumeBuffer, delay time.Duration,
	onResult func(thresholdMin, thresholdMax float64, labels *volume.VolumeBuffer),
	onError func(error)) (*PreviewWorker, error) {

	if source == nil {
		return nil, errors.Wrap(volume.ErrMissingVolume, "preview worker")
	}
	if err := source.Validate(); err != nil {
		return nil, errors.Wrap(err, "preview worker")
	}
	if onResult == nil || onError == nil {
		return nil, errors.New("preview worker: result and error callbacks are required")
	}

	w := &PreviewWorker{
		source:   source,
		delay:    delay,
		onResult: onResult,
		onError:  onError,
	}
	w.idle = sync.NewCond(&w.mu)
	return w, nil
}

// Submit schedules a preview for the given threshold window, restarting the
// debounce timer. Any not-yet-started submission is replaced and any preview
// still being computed becomes stale.
func (w *PreviewWorker) Submit(thresholdMin, thresholdMax float64) {
	w.mu.Lock()
	w.seq++
	w.pending = &previewRequest{min: thresholdMin, max: thresholdMax, seq: w.seq}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.dispatch)
	w.mu.Unlock()
}

// Stop cancels the pending submission and suppresses delivery of any preview
// still being computed. The worker accepts new submissions afterwards.
func (w *PreviewWorker) Stop() {
	w.mu.Lock()
	w.seq++
	w.pending = nil
	if w.timer != nil {
		w.timer.Stop()
	}
	w.idle.Broadcast()
	w.mu.Unlock()
}

// Flush blocks until every submission has been delivered, superseded or
// stopped. It must not be called from a callback.
func (w *PreviewWorker) Flush() {
	w.mu.Lock()
	for w.pending != nil || w.running {
		w.idle.Wait()
	}
	w.mu.Unlock()
}

// dispatch runs when the debounce timer fires. It hands the newest pending
// request to a fresh worker goroutine unless one is already running, in
// which case that goroutine picks the request up itself.
func (w *PreviewWorker) dispatch() {
	w.mu.Lock()
	if w.running || w.pending == nil {
		w.mu.Unlock()
		return
	}
	req := *w.pending
	w.pending = nil
	w.running = true
	w.mu.Unlock()

	go w.process(req)
}

func (w *PreviewWorker) process(req previewRequest) {
	for {
		segmenter := &segment.ThresholdSegmenter{Min: req.min, Max: req.max}
		labels, err := segmenter.Segment(w.source)

		w.mu.Lock()
		stale := req.seq != w.seq
		w.mu.Unlock()

		// A newer submission arrived during computation: discard, the
		// newer result is on its way.
		if !stale {
			if err != nil {
				w.onError(errors.Wrap(err, "preview worker"))
			} else {
				w.onResult(req.min, req.max, labels)
			}
		}

		w.mu.Lock()
		if w.pending != nil {
			req = *w.pending
			w.pending = nil
			w.mu.Unlock()
			continue
		}
		w.running = false
		w.idle.Broadcast()
		w.mu.Unlock()
		return
	}
}
