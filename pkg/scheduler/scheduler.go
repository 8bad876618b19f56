package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/origamihpc/origami/config"
	"github.com/origamihpc/origami/pkg/algorithm"
	"github.com/origamihpc/origami/pkg/backend"
	"github.com/origamihpc/origami/pkg/common/foldingjob"
	"github.com/origamihpc/origami/pkg/common/mongo"
	"github.com/origamihpc/origami/pkg/common/rabbitmq"
	"github.com/origamihpc/origami/pkg/common/types"
	"github.com/origamihpc/origami/pkg/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
	"k8s.io/klog/v2"
)

const (
	databaseNameJobInfo       = "job_info"
	databaseNameJobMetadata   = "job_metadata"
	collectionNameJobMetadata = "v1"
	databaseNameRunningJobs   = "runnings"

	reschedChannelSize = 100

	// rate limits of updateTimeMetrics() and resched() in seconds
	rateLimitTimeMetricsSeconds = 5
	reschedRateLimitSeconds     = 30

	// interval of the backend status poller in seconds
	statusPollSeconds = 10

	// maximum number of attempts of a rerunnable folding job
	maxAttempts = 3
)

// Scheduler dispatches folding jobs to a backend. It keeps the waiting
// queue, decides with its scheduling algorithm which jobs run in each
// round, and reconciles its view of the jobs with the backend.
type Scheduler struct {
	SchedulerID string
	backend     backend.Backend

	// Queue of all folding jobs that have not finished.
	Queue *FoldingJobQueue
	// Backend job id of each submitted folding job.
	JobBackendID map[string]string
	// Number of allocated GPUs of each folding job.
	JobNumGPU types.JobScheduleResult
	// Status of each folding job.
	JobStatuses map[string]types.JobStatusType
	// Time metrics of each folding job.
	JobMetrics map[string]*foldingjob.JobMetrics
	// SchedulerLock is used to protect Queue, JobBackendID, JobNumGPU,
	// JobStatuses and JobMetrics.
	SchedulerLock sync.RWMutex

	// Algorithm is an interface implemented by things that know how to
	// schedule folding jobs onto a fixed pool of GPUs.
	Algorithm algorithm.SchedulerAlgorithm

	// Metrics contains run-time metrics of the scheduler.
	Metrics SchedulerMetrics

	// channels used for main logic of the scheduler, should only be
	// consumed by scheduler.Run()
	reschedCh       chan time.Time
	stopSchedulerCh chan time.Time

	lastResched         time.Time
	reschedBlockedUntil time.Time

	session *mgo.Session
	msgs    <-chan rabbitmq.Msg

	Router *mux.Router

	ticker *time.Ticker
}

// NewScheduler creates a new scheduler with the given scheduling
// algorithm and backend. When resume is set the scheduler reconstructs
// its states from mongodb before accepting new jobs.
func NewScheduler(id string, algorithmName string, backendName string, resume bool) (*Scheduler, error) {
	klog.InfoS("Creating scheduler", "scheduler", id, "algorithm", algorithmName, "backend", backendName)

	be, err := backend.NewBackendFactory(backendName, id)
	if err != nil {
		return nil, err
	}
	algo, err := algorithm.NewAlgorithmFactory(algorithmName, id)
	if err != nil {
		return nil, err
	}
	queue, err := newFoldingJobQueue()
	if err != nil {
		return nil, err
	}

	session := mongo.ConnectMongo()
	conn := rabbitmq.ConnectRabbitMQ()
	msgs, err := rabbitmq.ReceiveFromQueue(conn, config.JobMsgQueue)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		SchedulerID:     id,
		backend:         be,
		Queue:           queue,
		JobBackendID:    map[string]string{},
		JobNumGPU:       types.JobScheduleResult{},
		JobStatuses:     map[string]types.JobStatusType{},
		JobMetrics:      map[string]*foldingjob.JobMetrics{},
		Algorithm:       algo,
		reschedCh:       make(chan time.Time, reschedChannelSize),
		stopSchedulerCh: make(chan time.Time),
		session:         session,
		msgs:            msgs,
		ticker:          time.NewTicker(time.Second * rateLimitTimeMetricsSeconds),
	}
	s.initSchedulerMetrics()
	s.initRoutes()

	if resume {
		s.constructStatusOnRestart()
	}

	return s, nil
}

func (s *Scheduler) initRoutes() {
	s.Router = mux.NewRouter()
	s.Router.HandleFunc(config.EntryPoint, s.getAllFoldingJobHandler()).Methods("GET")
	s.Router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

func (s *Scheduler) getAllFoldingJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, s.GetAllFoldingJob())
	}
}

// Run starts running the scheduler. It watches the job message queue,
// polls the backend for job status changes and performs rate limited
// rescheduling, until Stop() is called.
func (s *Scheduler) Run() {
	klog.InfoS("Starting scheduler", "scheduler", s.SchedulerID)
	defer klog.InfoS("Stopped scheduler", "scheduler", s.SchedulerID)

	stopTickerCh := make(chan bool)
	go s.updateTimeMetrics(stopTickerCh)
	defer func() { stopTickerCh <- true }()

	stopPollCh := make(chan bool)
	go s.pollBackendStatus(stopPollCh)
	defer func() { stopPollCh <- true }()

	go s.readMsgs()

	for {
		select {
		case r := <-s.reschedCh:
			if r.After(s.lastResched) {
				klog.V(4).InfoS("Received rescheduling event, may be blocked because of rate limit",
					"scheduler", s.SchedulerID, "event", r, "lastResched", s.lastResched)

				for time.Now().Before(s.reschedBlockedUntil) {
					time.Sleep(time.Second)
				}
				s.resched()
				s.lastResched = time.Now()
				s.reschedBlockedUntil = s.lastResched.Add(time.Second * reschedRateLimitSeconds)
			} else {
				klog.V(5).InfoS("Ignored outdated rescheduling event",
					"scheduler", s.SchedulerID, "event", r)
			}
		case <-s.stopSchedulerCh:
			return
		}
	}
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.stopSchedulerCh <- time.Now()
}

// TriggerResched sends a rescheduling signal to the scheduler. Should be
// called whenever the scheduler may need to reschedule folding jobs,
// e.g. when a job was created, finished or deleted.
func (s *Scheduler) TriggerResched() {
	s.reschedCh <- time.Now()
}

// resched makes a new schedule for all folding jobs in the queue and
// applies the changes between the new schedule and the old one. Jobs
// that lost their GPUs are halted before any newly scheduled job starts
// so the devices are free when the new job needs them.
func (s *Scheduler) resched() {
	klog.V(3).InfoS("Started rescheduling", "scheduler", s.SchedulerID)
	defer klog.V(3).InfoS("Finished rescheduling", "scheduler", s.SchedulerID)

	timer := prometheus.NewTimer(s.Metrics.reschedDuration)
	defer timer.ObserveDuration()

	s.SchedulerLock.Lock()

	if s.Algorithm.NeedJobInfo() {
		s.updateAllJobsInfoFromDB()
	}

	oldJobNumGPU := s.JobNumGPU
	timerAlgo := prometheus.NewTimer(s.Metrics.reschedAlgoDuration)
	s.JobNumGPU = s.Algorithm.Schedule(s.makeReadyJobsList(), s.backend.TotalGPUs())
	timerAlgo.ObserveDuration()

	halts, starts := s.compareResults(oldJobNumGPU)
	if len(halts)+len(starts) > 0 {
		s.haltFoldingJobMany(halts...)
		if placer, ok := s.backend.(backend.Placer); ok {
			placer.Place(s.JobNumGPU)
		}
		s.startFoldingJobMany(starts...)
		if err := s.recordRunningJobsInDB(); err != nil {
			klog.ErrorS(err, "Failed to record running jobs in mongodb", "scheduler", s.SchedulerID)
		}
	}

	s.SchedulerLock.Unlock()

	s.Metrics.reschedCounter.Inc()
}

// makeReadyJobsList returns a copy of all folding jobs in the queue for
// the scheduling algorithm to sort freely.
// Should acquire lock before calling it.
func (s *Scheduler) makeReadyJobsList() algorithm.ReadyJobs {
	jobs := make(algorithm.ReadyJobs, 0, s.Queue.Size())
	jobs = append(jobs, s.Queue.Queue...)
	return jobs
}

// updateAllJobsInfoFromDB updates information of all folding jobs in the
// queue from mongodb.
// Should acquire lock before calling it.
func (s *Scheduler) updateAllJobsInfoFromDB() {
	sess := s.session.Clone()
	defer sess.Close()

	for i := range s.Queue.Queue {
		t := &s.Queue.Queue[i]
		info := mongo.FoldingJobInfo{}
		err := sess.DB(databaseNameJobInfo).C(t.JobCollection).Find(bson.M{"name": t.JobName}).One(&info)
		if err != nil {
			klog.ErrorS(err, "Failed to find folding job info in mongodb",
				"job", t.JobName, "scheduler", s.SchedulerID)
			continue
		}
		t.Info.Residues = int(info.Residues)
		t.Info.EstimatedRunningTimeSec = info.EstimatedRunningTimeSec
	}
	klog.V(4).InfoS("Updated all folding jobs info from mongodb", "scheduler", s.SchedulerID)
}

// compareResults compares the new schedule against the old one and finds
// the jobs to halt and the jobs to start. A folding job runs with
// exactly its requested number of GPUs or not at all, there is no
// scaling in between, so the only transitions are full starts and full
// halts.
// Should acquire lock before calling it.
func (s *Scheduler) compareResults(oldResult types.JobScheduleResult) (halts []string, starts []string) {
	halts = make([]string, 0)
	starts = make([]string, 0)

	for job, n := range oldResult {
		newN, ok := s.JobNumGPU[job]
		if !ok {
			// The job left the queue since the old schedule was made.
			continue
		}
		if n > 0 && newN == 0 {
			status := s.JobStatuses[job]
			if status == types.JobRunning || status == types.JobQueued {
				halts = append(halts, job)
			}
		} else if n == 0 && newN > 0 {
			starts = append(starts, job)
		}
	}
	return halts, starts
}

func (s *Scheduler) startFoldingJobMany(jobs ...string) {
	for _, job := range jobs {
		if err := s.startFoldingJob(job); err != nil {
			klog.ErrorS(err, "Failed to start folding job", "job", job, "scheduler", s.SchedulerID)
			// Give the GPUs back so they are not counted for a job that
			// never reached the backend. The next resched retries.
			s.JobNumGPU[job] = 0
		}
	}
}

// startFoldingJob submits a folding job to the backend.
// Should acquire lock before calling it.
func (s *Scheduler) startFoldingJob(job string) error {
	t, err := s.Queue.Get(job)
	if err != nil {
		return err
	}

	id, err := s.backend.Submit(context.TODO(), t)
	if err != nil {
		return err
	}

	t.Attempts++
	t.Status = types.JobQueued
	s.JobBackendID[job] = id
	s.JobStatuses[job] = types.JobQueued
	if m, ok := s.JobMetrics[job]; ok {
		m.LastRunningTime = 0
		m.LastGpuTime = 0
	}
	s.recordJobInDB(t)

	klog.V(3).InfoS("Started folding job", "job", job, "jobID", id,
		"gpus", s.JobNumGPU[job], "attempt", t.Attempts, "scheduler", s.SchedulerID)
	return nil
}

func (s *Scheduler) haltFoldingJobMany(jobs ...string) {
	for _, job := range jobs {
		if err := s.haltFoldingJob(job); err != nil {
			klog.ErrorS(err, "Failed to halt folding job", "job", job, "scheduler", s.SchedulerID)
		}
	}
}

// haltFoldingJob cancels a folding job on the backend and puts it back
// to waiting. The job keeps its position in the queue.
// Should acquire lock before calling it.
func (s *Scheduler) haltFoldingJob(job string) error {
	id, ok := s.JobBackendID[job]
	if !ok {
		return nil
	}

	if err := s.backend.Cancel(context.TODO(), id); err != nil {
		return err
	}

	delete(s.JobBackendID, job)
	s.JobStatuses[job] = types.JobWaiting
	if m, ok := s.JobMetrics[job]; ok {
		m.LastWaitingTime = 0
	}
	if t, err := s.Queue.Get(job); err == nil {
		t.Status = types.JobWaiting
		s.recordJobInDB(t)
	}

	klog.V(3).InfoS("Halted folding job", "job", job, "jobID", id, "scheduler", s.SchedulerID)
	return nil
}

// readMsgs watches the job message queue and admits or removes folding
// jobs accordingly.
func (s *Scheduler) readMsgs() {
	for msg := range s.msgs {
		klog.V(4).InfoS("Received message", "scheduler", s.SchedulerID, "msg", msg)
		switch msg.Verb {
		case rabbitmq.VerbCreate:
			s.CreateFoldingJob(msg.JobName)
		case rabbitmq.VerbDelete:
			s.DeleteFoldingJob(msg.JobName)
		default:
			klog.InfoS("Ignored message with unknown verb", "scheduler", s.SchedulerID, "msg", msg)
		}
	}
}

// CreateFoldingJob loads a submitted folding job from mongodb and admits
// it to the waiting queue.
func (s *Scheduler) CreateFoldingJob(jobName string) {
	klog.InfoS("Creating folding job", "job", jobName, "scheduler", s.SchedulerID)

	sess := s.session.Clone()
	defer sess.Close()

	t := foldingjob.FoldingJob{}
	err := sess.DB(databaseNameJobMetadata).C(collectionNameJobMetadata).Find(bson.M{"name": jobName}).One(&t)
	if err != nil {
		klog.ErrorS(err, "Failed to find folding job metadata in mongodb",
			"job", jobName, "scheduler", s.SchedulerID)
		return
	}

	s.SchedulerLock.Lock()
	if _, ok := s.JobStatuses[jobName]; ok {
		s.SchedulerLock.Unlock()
		klog.InfoS("Ignored creating folding job that already exists",
			"job", jobName, "scheduler", s.SchedulerID)
		return
	}

	t.Status = types.JobWaiting
	s.recordJobInDB(&t)
	s.Queue.Enqueue(t)
	s.JobStatuses[jobName] = types.JobWaiting
	s.JobNumGPU[jobName] = 0
	s.JobMetrics[jobName] = foldingjob.NewJobMetrics(jobName)
	s.SchedulerLock.Unlock()

	s.TriggerResched()

	s.Metrics.jobsCreatedCounter.Inc()
	klog.InfoS("Created folding job", "job", jobName, "scheduler", s.SchedulerID)
}

// DeleteFoldingJob cancels a folding job and removes it from the
// scheduler. Records of the job in mongodb are kept.
func (s *Scheduler) DeleteFoldingJob(jobName string) {
	klog.InfoS("Deleting folding job", "job", jobName, "scheduler", s.SchedulerID)

	s.SchedulerLock.Lock()

	status, ok := s.JobStatuses[jobName]
	if !ok {
		s.SchedulerLock.Unlock()
		klog.InfoS("Ignored deleting folding job that does not exist",
			"job", jobName, "scheduler", s.SchedulerID)
		return
	}
	wasActive := status == types.JobRunning || status == types.JobQueued

	if id, ok := s.JobBackendID[jobName]; ok {
		if err := s.backend.Cancel(context.TODO(), id); err != nil {
			klog.ErrorS(err, "Failed to cancel folding job on the backend",
				"job", jobName, "jobID", id, "scheduler", s.SchedulerID)
		}
	}

	if t, err := s.Queue.Get(jobName); err == nil {
		// The metadata record was already removed by the service; only
		// the job info record outlives the job.
		sess := s.session.Clone()
		err := sess.DB(databaseNameJobInfo).C(t.JobCollection).Update(bson.M{"name": t.JobName},
			bson.M{"$set": bson.M{"status": string(types.JobCanceled)}})
		if err != nil {
			klog.ErrorS(err, "Failed to update folding job info in mongodb",
				"job", t.JobName, "scheduler", s.SchedulerID)
		}
		sess.Close()
	}

	s.Queue.Delete(jobName)
	delete(s.JobBackendID, jobName)
	delete(s.JobNumGPU, jobName)
	delete(s.JobMetrics, jobName)
	delete(s.JobStatuses, jobName)

	s.SchedulerLock.Unlock()

	if wasActive {
		s.TriggerResched()
	}

	s.Metrics.jobsDeletedCounter.Inc()
	klog.InfoS("Deleted folding job", "job", jobName, "scheduler", s.SchedulerID)
}

// pollBackendStatus reconciles job statuses with the backend every
// statusPollSeconds seconds. PBS has no push notifications; polling
// qstat is how job states are watched.
func (s *Scheduler) pollBackendStatus(stopPollCh chan bool) {
	poller := time.NewTicker(time.Second * statusPollSeconds)
	defer poller.Stop()

	for {
		select {
		case <-stopPollCh:
			klog.InfoS("Stopped backend status poller", "scheduler", s.SchedulerID)
			return
		case <-poller.C:
			s.reconcileJobStatuses()
		}
	}
}

// reconcileJobStatuses queries the backend for every queued or running
// folding job and applies the observed transitions.
func (s *Scheduler) reconcileJobStatuses() {
	// Snapshot the tracked jobs so the backend queries run without
	// holding the scheduler lock.
	s.SchedulerLock.RLock()
	tracked := make(map[string]string, len(s.JobBackendID))
	for job, id := range s.JobBackendID {
		status := s.JobStatuses[job]
		if status == types.JobQueued || status == types.JobRunning {
			tracked[job] = id
		}
	}
	s.SchedulerLock.RUnlock()

	for job, id := range tracked {
		phase, err := s.backend.Status(context.TODO(), id)
		if err != nil {
			klog.ErrorS(err, "Failed to query folding job status",
				"job", job, "jobID", id, "scheduler", s.SchedulerID)
			continue
		}

		switch phase {
		case types.JobRunning:
			s.SchedulerLock.Lock()
			if s.JobStatuses[job] == types.JobQueued {
				s.JobStatuses[job] = types.JobRunning
				if t, err := s.Queue.Get(job); err == nil {
					t.Status = types.JobRunning
					s.recordJobInDB(t)
				}
				klog.V(4).InfoS("Folding job started running",
					"job", job, "jobID", id, "scheduler", s.SchedulerID)
			}
			s.SchedulerLock.Unlock()
		case types.JobCompleted:
			s.SchedulerLock.Lock()
			if s.JobStatuses[job] != types.JobCompleted {
				s.handleJobCompleted(job)
			}
			s.SchedulerLock.Unlock()
		case types.JobFailed:
			exitCode, _, err := s.backend.ExitStatus(context.TODO(), id)
			if err != nil {
				klog.ErrorS(err, "Failed to query folding job exit status",
					"job", job, "jobID", id, "scheduler", s.SchedulerID)
			}
			s.SchedulerLock.Lock()
			if s.JobStatuses[job] != types.JobFailed {
				s.handleJobFailed(job, exitCode)
			}
			s.SchedulerLock.Unlock()
		}
	}
}

// handleJobCompleted makes essential updates and sends a rescheduling
// signal when a folding job finished successfully.
// Should acquire lock before calling it.
func (s *Scheduler) handleJobCompleted(job string) {
	t, err := s.Queue.Get(job)
	if err != nil {
		klog.ErrorS(err, "Completed folding job was not in the queue, this should not happen",
			"job", job, "scheduler", s.SchedulerID)
		return
	}

	if m, ok := s.JobMetrics[job]; ok {
		klog.InfoS("Folding job completed", "job", job, "scheduler", s.SchedulerID,
			"waitedSeconds", m.WaitingTime.Seconds(),
			"ranSeconds", m.RunningTime.Seconds(),
			"gpuSeconds", m.GpuTime.Seconds(),
			"elapsedSeconds", m.TotalTime.Seconds())
	}

	t.Status = types.JobCompleted
	s.JobStatuses[job] = types.JobCompleted
	s.recordJobExitInDB(t, 0)

	if t.Config.FilterPlan != "" {
		// Copy the job; t points into the queue and Delete reuses the slot.
		completed := *t
		go s.runFilterPlan(&completed)
	}

	s.Queue.Delete(job)
	delete(s.JobBackendID, job)
	delete(s.JobNumGPU, job)

	s.Metrics.jobsCompletedCounter.Inc()
	s.TriggerResched()
}

// runFilterPlan evaluates the job's filter plan over its output
// directory. Runs in its own goroutine; a failed plan only logs, the
// job stays completed.
func (s *Scheduler) runFilterPlan(t *foldingjob.FoldingJob) {
	dir := t.Config.OutputDir
	if !filepath.IsAbs(dir) && t.Config.WorkDir != "" {
		dir = filepath.Join(t.Config.WorkDir, dir)
	}

	plan, err := pipeline.LoadPlan(t.Config.FilterPlan)
	if err != nil {
		klog.ErrorS(err, "Failed to load filter plan", "job", t.JobName,
			"plan", t.Config.FilterPlan, "scheduler", s.SchedulerID)
		return
	}

	res, err := pipeline.NewRunner(plan).Run(context.Background(), dir)
	if err != nil {
		klog.ErrorS(err, "Filter plan failed", "job", t.JobName,
			"plan", t.Config.FilterPlan, "dir", dir, "scheduler", s.SchedulerID)
		return
	}
	klog.InfoS("Filter plan for folding job finished", "job", t.JobName,
		"plan", t.Config.FilterPlan, "runID", res.RunID, "total", res.Total,
		"survivors", len(res.Survivors), "rejected", res.Rejected,
		"scheduler", s.SchedulerID)
}

// handleJobFailed requeues a rerunnable folding job that has attempts
// left, otherwise marks the job failed. The exit status of the folding
// tool is recorded either way.
// Should acquire lock before calling it.
func (s *Scheduler) handleJobFailed(job string, exitCode int) {
	t, err := s.Queue.Get(job)
	if err != nil {
		klog.ErrorS(err, "Failed folding job was not in the queue, this should not happen",
			"job", job, "scheduler", s.SchedulerID)
		return
	}

	delete(s.JobBackendID, job)

	if s.shouldRequeue(t) {
		t.Status = types.JobWaiting
		s.JobStatuses[job] = types.JobWaiting
		s.JobNumGPU[job] = 0
		if m, ok := s.JobMetrics[job]; ok {
			m.LastWaitingTime = 0
		}
		s.recordJobExitInDB(t, exitCode)

		s.Metrics.jobsRequeuedCounter.Inc()
		klog.InfoS("Requeued folding job", "job", job, "exitCode", exitCode,
			"attempt", t.Attempts, "maxAttempts", maxAttempts, "scheduler", s.SchedulerID)
	} else {
		t.Status = types.JobFailed
		s.JobStatuses[job] = types.JobFailed
		s.recordJobExitInDB(t, exitCode)
		s.Queue.Delete(job)
		delete(s.JobNumGPU, job)

		s.Metrics.jobsFailedCounter.Inc()
		klog.InfoS("Folding job failed", "job", job, "exitCode", exitCode,
			"attempts", t.Attempts, "scheduler", s.SchedulerID)
	}
	s.TriggerResched()
}

// shouldRequeue reports whether a failed folding job gets another
// attempt.
func (s *Scheduler) shouldRequeue(t *foldingjob.FoldingJob) bool {
	return t.Config.Rerunnable && t.Attempts < maxAttempts
}

// recordJobInDB persists the status, backend job id and attempts of a
// folding job so that a restarted scheduler can pick up where it left
// off.
// Should acquire lock before calling it.
func (s *Scheduler) recordJobInDB(t *foldingjob.FoldingJob) {
	sess := s.session.Clone()
	defer sess.Close()

	err := sess.DB(databaseNameJobInfo).C(t.JobCollection).Update(bson.M{"name": t.JobName},
		bson.M{"$set": bson.M{
			"status":         string(t.Status),
			"backend_job_id": s.JobBackendID[t.JobName],
			"attempts":       int32(t.Attempts),
		}})
	if err != nil {
		klog.ErrorS(err, "Failed to update folding job info in mongodb",
			"job", t.JobName, "scheduler", s.SchedulerID)
	}

	err = sess.DB(databaseNameJobMetadata).C(collectionNameJobMetadata).Update(bson.M{"name": t.JobName}, t)
	if err != nil {
		klog.ErrorS(err, "Failed to update folding job metadata in mongodb",
			"job", t.JobName, "scheduler", s.SchedulerID)
	}
}

// recordJobExitInDB is recordJobInDB plus the exit status of the most
// recent finished attempt.
// Should acquire lock before calling it.
func (s *Scheduler) recordJobExitInDB(t *foldingjob.FoldingJob, exitCode int) {
	sess := s.session.Clone()
	defer sess.Close()

	err := sess.DB(databaseNameJobInfo).C(t.JobCollection).Update(bson.M{"name": t.JobName},
		bson.M{"$set": bson.M{
			"status":         string(t.Status),
			"backend_job_id": s.JobBackendID[t.JobName],
			"attempts":       int32(t.Attempts),
			"exit_code":      int32(exitCode),
		}})
	if err != nil {
		klog.ErrorS(err, "Failed to update folding job info in mongodb",
			"job", t.JobName, "scheduler", s.SchedulerID)
	}

	err = sess.DB(databaseNameJobMetadata).C(collectionNameJobMetadata).Update(bson.M{"name": t.JobName}, t)
	if err != nil {
		klog.ErrorS(err, "Failed to update folding job metadata in mongodb",
			"job", t.JobName, "scheduler", s.SchedulerID)
	}
}

// recordRunningJobsInDB keeps the list of currently scheduled folding
// jobs in mongodb up to date.
// Should acquire lock before calling it.
func (s *Scheduler) recordRunningJobsInDB() error {
	sess := s.session.Clone()
	defer sess.Close()

	c := sess.DB(databaseNameRunningJobs).C(s.SchedulerID)
	err := c.DropCollection()
	if err != nil && err.Error() != "ns not found" {
		return err
	}
	for job, n := range s.JobNumGPU {
		if n > 0 {
			if err := c.Insert(mongo.JobRunning{Name: job}); err != nil {
				return err
			}
		}
	}
	return nil
}

// updateTimeMetrics updates time metrics of all folding jobs every
// rateLimitTimeMetricsSeconds seconds.
func (s *Scheduler) updateTimeMetrics(stopTickerCh chan bool) {
	for {
		select {
		case <-stopTickerCh:
			klog.InfoS("Stopped ticker of the scheduler", "scheduler", s.SchedulerID)
			return
		case <-s.ticker.C:
			s.SchedulerLock.Lock()
			now := time.Now()
			for job, m := range s.JobMetrics {
				elapsed := now.Sub(m.LastUpdated)
				switch s.JobStatuses[job] {
				case types.JobRunning:
					gpus := time.Duration(s.JobNumGPU[job])
					m.RunningTime += elapsed
					m.GpuTime += elapsed * gpus
					m.TotalTime += elapsed
					m.LastRunningTime += elapsed
					m.LastGpuTime += elapsed * gpus
				case types.JobWaiting, types.JobQueued:
					m.WaitingTime += elapsed
					m.TotalTime += elapsed
					m.LastWaitingTime += elapsed
				}
				m.LastUpdated = now
			}
			s.SchedulerLock.Unlock()
		}
	}
}

// GetAllFoldingJob returns a text table of all folding jobs known to the
// scheduler, sorted by name.
func (s *Scheduler) GetAllFoldingJob() string {
	str := fmt.Sprintf("%-60s%-12s%-6s%-10s%-14s%-14s%-14s\n",
		"NAME", "STATUS", "GPUS", "BACKEND", "WAITING(SEC)", "RUNNING(SEC)", "TOTAL(SEC)")

	s.SchedulerLock.RLock()
	defer s.SchedulerLock.RUnlock()

	names := make([]string, 0, len(s.JobStatuses))
	for job := range s.JobStatuses {
		names = append(names, job)
	}
	sort.Strings(names)

	for _, job := range names {
		waiting, running, total := 0.0, 0.0, 0.0
		if m, ok := s.JobMetrics[job]; ok {
			waiting = m.WaitingTime.Seconds()
			running = m.RunningTime.Seconds()
			total = m.TotalTime.Seconds()
		}
		str += fmt.Sprintf("%-60s%-12s%-6d%-10s%-14.0f%-14.0f%-14.0f\n",
			job, s.JobStatuses[job], s.JobNumGPU[job], s.backend.Name(), waiting, running, total)
	}
	return str
}

// constructStatusOnRestart reconstructs the states of the scheduler from
// mongodb. Jobs that were on the PBS backend stay alive across scheduler
// restarts and keep their backend job id; the status poller reconciles
// them. Jobs that were running on the local backend died with the
// scheduler and are re-queued.
func (s *Scheduler) constructStatusOnRestart() {
	klog.InfoS("Reconstructing scheduler states from mongodb", "scheduler", s.SchedulerID)

	sess := s.session.Clone()
	defer sess.Close()

	jobs := []foldingjob.FoldingJob{}
	err := sess.DB(databaseNameJobMetadata).C(collectionNameJobMetadata).Find(nil).All(&jobs)
	if err != nil {
		klog.ErrorS(err, "Failed to find folding jobs metadata in mongodb", "scheduler", s.SchedulerID)
		klog.Flush()
		os.Exit(1)
	}

	s.SchedulerLock.Lock()

	for _, t := range jobs {
		switch t.Status {
		case types.JobSubmitted:
			// The create message is still in the job queue or lost.
			// Leave the job to the message reader.
			continue
		case types.JobWaiting:
			s.admitOnRestart(t)
		case types.JobQueued, types.JobRunning:
			info := mongo.FoldingJobInfo{}
			err := sess.DB(databaseNameJobInfo).C(t.JobCollection).Find(bson.M{"name": t.JobName}).One(&info)
			if err == nil && info.BackendJobID != "" && t.Config.Backend == "pbs" {
				s.Queue.Enqueue(t)
				s.JobStatuses[t.JobName] = t.Status
				s.JobBackendID[t.JobName] = info.BackendJobID
				s.JobNumGPU[t.JobName] = t.Config.GPUs
				s.JobMetrics[t.JobName] = foldingjob.NewJobMetrics(t.JobName)
				klog.InfoS("Reattached folding job on the PBS backend", "job", t.JobName,
					"jobID", info.BackendJobID, "status", t.Status, "scheduler", s.SchedulerID)
			} else {
				s.admitOnRestart(t)
				klog.InfoS("Requeued folding job lost in restart", "job", t.JobName,
					"scheduler", s.SchedulerID)
			}
		case types.JobCompleted, types.JobFailed, types.JobCanceled:
			s.JobStatuses[t.JobName] = t.Status
		}
	}

	size := s.Queue.Size()
	s.SchedulerLock.Unlock()

	if size > 0 {
		s.TriggerResched()
	}
	klog.InfoS("Reconstructed scheduler states from mongodb", "scheduler", s.SchedulerID, "jobs", size)
}

// admitOnRestart puts a reconstructed folding job back to the waiting
// queue.
// Should acquire lock before calling it.
func (s *Scheduler) admitOnRestart(t foldingjob.FoldingJob) {
	t.Status = types.JobWaiting
	s.Queue.Enqueue(t)
	s.JobStatuses[t.JobName] = types.JobWaiting
	s.JobNumGPU[t.JobName] = 0
	s.JobMetrics[t.JobName] = foldingjob.NewJobMetrics(t.JobName)
}
