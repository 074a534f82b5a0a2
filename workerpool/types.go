package workerpool

// WorkerPool runs tasks on pooled goroutines.
type WorkerPool interface {
	// Schedule hands task to an idle worker, or starts a new one. It never
	// blocks: once the pool is full a temporary goroutine takes the task.
	Schedule(task func())

	// Running returns the number of live worker goroutines.
	Running() int

	// Close waits for every scheduled task to finish. Tasks scheduled after
	// Close are dropped.
	Close()
}
