// https://github.com/IBM/FfDL/blob/master/trainer/trainer/queue.go

package scheduler

import (
	"errors"

	"github.com/origamihpc/origami/pkg/common/foldingjob"
)

// JobQueue represents the functionality of a queue
type JobQueue interface {
	Enqueue(foldingjob.FoldingJob)
	Delete(string) error
	Get(string) (*foldingjob.FoldingJob, error)
	Size() int
	Empty() bool
}

// FoldingJobQueue is a JobQueue
// TODO: Considering store the whole queue in mongo
type FoldingJobQueue struct {
	Queue []foldingjob.FoldingJob
}

// newFoldingJobQueue creates a new queue for folding jobs
func newFoldingJobQueue() (*FoldingJobQueue, error) {
	q := &FoldingJobQueue{
		Queue: make([]foldingjob.FoldingJob, 0),
	}
	return q, nil
}

// Enqueue adds a folding job to the queue
// caller should acquire the scheduler lock before calling Enqueue()
func (q *FoldingJobQueue) Enqueue(t foldingjob.FoldingJob) {
	q.Queue = append(q.Queue, t)
}

// Delete removes a folding job from any position in the queue while
// keeping the original order
// caller should acquire the scheduler lock before calling Delete()
func (q *FoldingJobQueue) Delete(name string) error {
	found, index := q.index(name)
	if found != true {
		return errors.New("folding job not found")
	} else {
		q.Queue = append(q.Queue[:index], q.Queue[index+1:]...)
		return nil
	}
}

// Get finds a folding job in the queue and returns it
func (q *FoldingJobQueue) Get(name string) (*foldingjob.FoldingJob, error) {
	found, index := q.index(name)
	if found != true {
		return nil, errors.New("folding job not found")
	} else {
		return &q.Queue[index], nil
	}
}

// index finds the index of a folding job name in the queue
func (q *FoldingJobQueue) index(name string) (bool, int) {
	for i, t := range q.Queue {
		if t.JobName == name {
			return true, i
		}
	}
	return false, 0
}

// Size returns the number of elements in the queue
func (q *FoldingJobQueue) Size() int {
	size := len(q.Queue)
	return size
}

// Empty returns whether the queue has any jobs
func (q *FoldingJobQueue) Empty() bool {
	size := q.Size()
	return size == 0
}
