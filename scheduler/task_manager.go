package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"dealscout/models"
)

const (
	defaultQueueSize = 100
	taskRetention    = time.Hour
	cleanupInterval  = time.Minute
)

// TaskManager runs shopping queries in the background for the async API
type TaskManager struct {
	tasks         map[string]*models.SearchTask
	taskQueue     chan *models.SearchTask
	maxWorkers    int
	activeWorkers atomic.Int32
	searchFunc    SearchFunc
	mutex         sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTaskManager creates a task manager and starts its workers
func NewTaskManager(searchFunc SearchFunc, maxWorkers int) *TaskManager {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	tm := &TaskManager{
		tasks:      make(map[string]*models.SearchTask),
		taskQueue:  make(chan *models.SearchTask, defaultQueueSize),
		maxWorkers: maxWorkers,
		searchFunc: searchFunc,
		ctx:        ctx,
		cancel:     cancel,
	}

	for i := 0; i < maxWorkers; i++ {
		tm.wg.Add(1)
		go tm.worker()
	}
	tm.wg.Add(1)
	go tm.cleanupLoop()

	log.Printf("🚀 Task manager started with %d max workers", maxWorkers)
	return tm
}

// SubmitTask queues a search. A full queue fails the task immediately.
func (tm *TaskManager) SubmitTask(query string) *models.SearchTask {
	task := models.NewSearchTask(query)

	tm.mutex.Lock()
	tm.tasks[task.ID] = task
	tm.mutex.Unlock()

	if tm.ctx.Err() != nil {
		task.Fail("Task manager is shutting down")
		return task
	}

	select {
	case tm.taskQueue <- task:
		log.Printf("📝 Task %s submitted for query %q", task.ID, query)
	default:
		task.Fail("Task queue is full")
		log.Printf("❌ Failed to submit task %s - queue full", task.ID)
	}

	return task
}

// GetTask returns a task by ID
func (tm *TaskManager) GetTask(taskID string) (*models.SearchTask, bool) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	task, exists := tm.tasks[taskID]
	return task, exists
}

// GetActiveTasks returns all active tasks
func (tm *TaskManager) GetActiveTasks() []*models.SearchTask {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	var activeTasks []*models.SearchTask
	for _, task := range tm.tasks {
		if task.IsActive() {
			activeTasks = append(activeTasks, task)
		}
	}

	return activeTasks
}

// CleanupOldTasks removes completed tasks older than maxAge
func (tm *TaskManager) CleanupOldTasks(maxAge time.Duration) int {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for taskID, task := range tm.tasks {
		if task.IsCompleted() && task.CreatedAt.Before(cutoff) {
			delete(tm.tasks, taskID)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("🧹 Cleaned up %d old tasks", removed)
	}
	return removed
}

func (tm *TaskManager) cleanupLoop() {
	defer tm.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tm.CleanupOldTasks(taskRetention)
		case <-tm.ctx.Done():
			return
		}
	}
}

func (tm *TaskManager) worker() {
	defer tm.wg.Done()

	for {
		select {
		case task := <-tm.taskQueue:
			tm.run(task)
		case <-tm.ctx.Done():
			return
		}
	}
}

// run processes a single task
func (tm *TaskManager) run(task *models.SearchTask) {
	active := tm.activeWorkers.Add(1)
	defer func() {
		if r := recover(); r != nil {
			task.Fail(fmt.Sprintf("Search panicked: %v", r))
		}
		tm.activeWorkers.Add(-1)
	}()

	log.Printf("👷 Worker started processing task %s (%d active)", task.ID, active)
	task.Start()

	result, err := tm.searchFunc(tm.ctx, task.Query)
	if err != nil {
		task.Fail("Search failed: " + err.Error())
		log.Printf("❌ Task %s failed: %v", task.ID, err)
		return
	}

	task.Complete(result)
	log.Printf("✅ Task %s completed successfully in %v", task.ID, task.Duration())
}

// Stop cancels running searches and waits for workers to exit
func (tm *TaskManager) Stop() {
	log.Println("🛑 Task manager stopping...")
	tm.cancel()
	tm.wg.Wait()
	log.Println("🛑 Task manager stopped")
}

// GetStats returns task manager statistics
func (tm *TaskManager) GetStats() map[string]interface{} {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	stats := map[string]interface{}{
		"total_tasks":    len(tm.tasks),
		"active_workers": int(tm.activeWorkers.Load()),
		"max_workers":    tm.maxWorkers,
		"queue_size":     len(tm.taskQueue),
	}

	statusCounts := make(map[string]int)
	for _, task := range tm.tasks {
		statusCounts[string(task.Snapshot().Status)]++
	}
	stats["tasks_by_status"] = statusCounts

	return stats
}
