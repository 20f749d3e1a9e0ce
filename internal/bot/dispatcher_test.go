package bot

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/voxlane/symphony/internal/models"
)

func TestDispatcherSerializesPerThread(t *testing.T) {
	d := newDispatcher()
	key := models.ThreadID{ChannelID: "C1", ThreadTS: "1.0"}

	var mu sync.Mutex
	var order []int
	for i := 1; i <= 20; i++ {
		i := i
		d.Enqueue(key, func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	d.Wait()

	for i, got := range order {
		assert.Equal(t, i+1, got, "jobs on one thread must run in arrival order")
	}
}

func TestDispatcherRunsThreadsInParallel(t *testing.T) {
	d := newDispatcher()
	a := models.ThreadID{ChannelID: "C1", ThreadTS: "1.0"}
	b := models.ThreadID{ChannelID: "C1", ThreadTS: "2.0"}

	release := make(chan struct{})
	bRan := make(chan struct{})

	// The job on thread a blocks until the job on thread b has run.
	d.Enqueue(a, func() {
		select {
		case <-bRan:
		case <-time.After(5 * time.Second):
			t.Error("thread b never ran while thread a was blocked")
		}
		close(release)
	})
	d.Enqueue(b, func() {
		close(bRan)
	})

	d.Wait()
	select {
	case <-release:
	default:
		t.Error("thread a job did not complete")
	}
}

func TestDispatcherReusesKeyAfterDrain(t *testing.T) {
	d := newDispatcher()
	key := models.ThreadID{ChannelID: "C1", ThreadTS: "1.0"}

	ran := 0
	d.Enqueue(key, func() { ran++ })
	d.Wait()
	d.Enqueue(key, func() { ran++ })
	d.Wait()

	assert.Equal(t, 2, ran)
}
