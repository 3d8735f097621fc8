package workers

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Finalizer completes challenges whose deadline has passed.
type Finalizer interface {
	FinalizeDue(ctx context.Context) (int, error)
}

// ChallengeFinalizer runs a Finalizer on a fixed interval until stopped.
type ChallengeFinalizer struct {
	finalizer Finalizer
	interval  time.Duration
	timeout   time.Duration
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewChallengeFinalizer(finalizer Finalizer, interval time.Duration) *ChallengeFinalizer {
	return &ChallengeFinalizer{
		finalizer: finalizer,
		interval:  interval,
		timeout:   5 * time.Minute,
		stopChan:  make(chan struct{}),
	}
}

// Start runs one sweep immediately, then one per interval.
func (w *ChallengeFinalizer) Start() {
	ticker := time.NewTicker(w.interval)
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		defer ticker.Stop()

		w.sweep()
		for {
			select {
			case <-ticker.C:
				w.sweep()
			case <-w.stopChan:
				return
			}
		}
	}()
	log.Info().Dur("interval", w.interval).Msg("ChallengeFinalizer: started")
}

func (w *ChallengeFinalizer) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	completed, err := w.finalizer.FinalizeDue(ctx)
	if err != nil {
		log.Error().Err(err).Msg("ChallengeFinalizer: sweep failed")
		return
	}
	if completed > 0 {
		log.Info().Int("completed", completed).Msg("ChallengeFinalizer: completed overdue challenges")
	}
}

// Stop waits for an in-flight sweep to finish.
func (w *ChallengeFinalizer) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
}
