package bot

import (
	"sync"

	"github.com/voxlane/symphony/internal/models"
)

// dispatcher serializes turn processing per thread while letting distinct
// threads run in parallel. Each turn's context depends on what the previous
// turn persisted, so within a thread jobs run strictly in arrival order.
type dispatcher struct {
	mu     sync.Mutex
	queues map[models.ThreadID][]func()
	wg     sync.WaitGroup
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		queues: make(map[models.ThreadID][]func()),
	}
}

// Enqueue schedules a job on the thread's queue, starting a drain worker if
// the thread has none. A queue entry in the map means a worker owns it.
func (d *dispatcher) Enqueue(key models.ThreadID, job func()) {
	d.mu.Lock()
	_, running := d.queues[key]
	d.queues[key] = append(d.queues[key], job)
	d.mu.Unlock()

	if !running {
		d.wg.Add(1)
		go d.drain(key)
	}
}

func (d *dispatcher) drain(key models.ThreadID) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		jobs := d.queues[key]
		if len(jobs) == 0 {
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		job := jobs[0]
		d.queues[key] = jobs[1:]
		d.mu.Unlock()

		job()
	}
}

// Wait blocks until every queued job has finished.
func (d *dispatcher) Wait() {
	d.wg.Wait()
}
