package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Task is a function that represents a background job
type Task func(ctx context.Context) error

// Pool runs fire-and-forget session work (broadcast fan-out, background
// creates, emergency snapshots) off the caller's path.
type Pool struct {
	taskQueue chan Task
	wg        sync.WaitGroup
	isClosing atomic.Bool // thread-safe value
	log       zerolog.Logger
}

func NewPool(size int, log zerolog.Logger) *Pool {
	wp := &Pool{
		taskQueue: make(chan Task, 1000), // Buffer for 1000 pending tasks
		log:       log.With().Str("component", "worker").Logger(),
	}

	// Start the workers
	for i := 0; i < size; i++ {
		wp.wg.Add(1) // add to WaitGroup
		go wp.startWorker()
	}

	return wp
}

func (wp *Pool) startWorker() {
	defer wp.wg.Done() // signal when worker finished
	for task := range wp.taskQueue {
		ctx := context.Background()
		if err := task(ctx); err != nil { // run task
			wp.log.Warn().Err(err).Msg("worker task failed")
		}
	}
}

func (wp *Pool) Submit(t Task) {
	if wp.isClosing.Load() {
		wp.log.Warn().Msg("task submitted during shutdown, dropping")
		return
	}
	select {
	case wp.taskQueue <- t: // send task to worker pool
	default:
		wp.log.Warn().Msg("task queue full, dropping task")
	}
}

// Shutdown closes the queue and waits for workers to finish
func (wp *Pool) Shutdown() {
	wp.isClosing.Store(true)
	close(wp.taskQueue) // Stop accepting new tasks
	wp.wg.Wait()        // Wait for all active workers to finish tasks
}
