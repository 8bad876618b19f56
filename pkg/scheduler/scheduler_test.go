package scheduler

import (
	"strings"
	"testing"
	"time"

	"github.com/origamihpc/origami/pkg/algorithm"
	"github.com/origamihpc/origami/pkg/backend"
	"github.com/origamihpc/origami/pkg/common/foldingjob"
	"github.com/origamihpc/origami/pkg/common/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestScheduler builds a scheduler without mongodb and rabbitmq
// connections. Each test must use a unique scheduler id because the
// metrics register themselves in the default prometheus registry.
func newTestScheduler(t *testing.T, id string) *Scheduler {
	t.Helper()

	queue, err := newFoldingJobQueue()
	require.NoError(t, err)
	algo, err := algorithm.NewAlgorithmFactory("FIFO", id)
	require.NoError(t, err)
	be, err := backend.NewBackendFactory("pbs", id)
	require.NoError(t, err)

	s := &Scheduler{
		SchedulerID:  id,
		backend:      be,
		Queue:        queue,
		JobBackendID: map[string]string{},
		JobNumGPU:    types.JobScheduleResult{},
		JobStatuses:  map[string]types.JobStatusType{},
		JobMetrics:   map[string]*foldingjob.JobMetrics{},
		Algorithm:    algo,
		reschedCh:    make(chan time.Time, reschedChannelSize),
	}
	s.initSchedulerMetrics()
	return s
}

func TestCompareResults(t *testing.T) {
	s := newTestScheduler(t, "sched-test-compare")

	s.JobStatuses["fold-halt"] = types.JobRunning
	s.JobStatuses["fold-halt-queued"] = types.JobQueued
	s.JobStatuses["fold-done"] = types.JobCompleted
	s.JobStatuses["fold-start"] = types.JobWaiting
	s.JobStatuses["fold-keep"] = types.JobRunning
	s.JobStatuses["fold-wait"] = types.JobWaiting

	oldResult := types.JobScheduleResult{
		"fold-halt":        2,
		"fold-halt-queued": 1,
		"fold-done":        1,
		"fold-start":       0,
		"fold-keep":        1,
		"fold-wait":        0,
		"fold-gone":        1,
	}
	s.JobNumGPU = types.JobScheduleResult{
		"fold-halt":        0,
		"fold-halt-queued": 0,
		"fold-done":        0,
		"fold-start":       1,
		"fold-keep":        1,
		"fold-wait":        0,
	}

	halts, starts := s.compareResults(oldResult)
	assert.ElementsMatch(t, []string{"fold-halt", "fold-halt-queued"}, halts)
	assert.ElementsMatch(t, []string{"fold-start"}, starts)
}

func TestShouldRequeue(t *testing.T) {
	s := newTestScheduler(t, "sched-test-requeue")

	job := makeJob(t, "fold-rerun")
	assert.True(t, s.shouldRequeue(&job))

	job.Attempts = maxAttempts
	assert.False(t, s.shouldRequeue(&job))

	job.Attempts = 1
	job.Config.Rerunnable = false
	assert.False(t, s.shouldRequeue(&job))
}

func TestMakeReadyJobsList(t *testing.T) {
	s := newTestScheduler(t, "sched-test-readyjobs")

	s.Queue.Enqueue(makeJob(t, "fold-a"))
	s.Queue.Enqueue(makeJob(t, "fold-b"))

	jobs := s.makeReadyJobsList()
	require.Len(t, jobs, 2)
	assert.Equal(t, "fold-a", jobs[0].JobName)
	assert.Equal(t, "fold-b", jobs[1].JobName)

	// The list is a copy, the queue must not be affected by the
	// algorithm sorting it.
	jobs[0], jobs[1] = jobs[1], jobs[0]
	assert.Equal(t, "fold-a", s.Queue.Queue[0].JobName)
}

func TestGetAllFoldingJob(t *testing.T) {
	s := newTestScheduler(t, "sched-test-getall")

	s.JobStatuses["fold-b"] = types.JobWaiting
	s.JobMetrics["fold-b"] = foldingjob.NewJobMetrics("fold-b")
	s.JobStatuses["fold-a"] = types.JobRunning
	s.JobNumGPU["fold-a"] = 2
	s.JobMetrics["fold-a"] = foldingjob.NewJobMetrics("fold-a")

	out := s.GetAllFoldingJob()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "fold-a")
	assert.Contains(t, out, "Running")
	assert.Contains(t, out, "fold-b")
	assert.Contains(t, out, "Waiting")
	assert.Less(t, strings.Index(out, "fold-a"), strings.Index(out, "fold-b"))
}

func TestTriggerResched(t *testing.T) {
	s := newTestScheduler(t, "sched-test-trigger")

	s.TriggerResched()
	select {
	case <-s.reschedCh:
	default:
		t.Fatal("expected a rescheduling event")
	}
}
