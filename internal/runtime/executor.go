package runtime

import (
	"sync"

	"github.com/alitto/pond/v2"
)

const defaultPoolSize = 64

// Executor runs actor operations off the interpreter's turn.
type Executor interface {
	// Go schedules the task. It returns an error if the executor no longer accepts work.
	Go(task func()) error
}

// PoolExecutor runs tasks on a bounded pond worker pool.
type PoolExecutor struct {
	pool pond.Pool
}

// NewPoolExecutor creates a pool with the given concurrency limit.
func NewPoolExecutor(maxConcurrency int) *PoolExecutor {
	return &PoolExecutor{pool: pond.NewPool(maxConcurrency)}
}

// Go implements Executor.
func (p *PoolExecutor) Go(task func()) error {
	return p.pool.Go(task)
}

// StopAndWait waits for running tasks and rejects new ones.
func (p *PoolExecutor) StopAndWait() {
	p.pool.StopAndWait()
}

var (
	defaultExecutor     *PoolExecutor
	defaultExecutorOnce sync.Once
)

// DefaultExecutor returns the process-wide pool shared by interpreters that were not
// given an executor.
func DefaultExecutor() *PoolExecutor {
	defaultExecutorOnce.Do(func() {
		defaultExecutor = NewPoolExecutor(defaultPoolSize)
	})
	return defaultExecutor
}

// ManualExecutor queues tasks until the caller runs them. It makes actor settlement
// order fully controllable in tests and step-by-step tooling.
type ManualExecutor struct {
	mu    sync.Mutex
	tasks []func()
}

// NewManualExecutor creates an empty queue.
func NewManualExecutor() *ManualExecutor {
	return &ManualExecutor{}
}

// Go implements Executor.
func (m *ManualExecutor) Go(task func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
	return nil
}

// Pending returns the number of queued tasks.
func (m *ManualExecutor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Run executes the i-th queued task (0 is the oldest) and removes it from the queue.
// It reports false if there is no such task.
func (m *ManualExecutor) Run(i int) bool {
	m.mu.Lock()
	if i < 0 || i >= len(m.tasks) {
		m.mu.Unlock()
		return false
	}
	task := m.tasks[i]
	m.tasks = append(m.tasks[:i:i], m.tasks[i+1:]...)
	m.mu.Unlock()

	task()
	return true
}

// RunNext executes the oldest queued task.
func (m *ManualExecutor) RunNext() bool {
	return m.Run(0)
}

// RunLast executes the most recently queued task.
func (m *ManualExecutor) RunLast() bool {
	return m.Run(m.Pending() - 1)
}

// RunAll drains the queue, including tasks queued while draining.
func (m *ManualExecutor) RunAll() int {
	n := 0
	for m.RunNext() {
		n++
	}
	return n
}
