package types

type JobStatusType string

const (
	// JobSubmitted means the job has been written to the database by the
	// service but the dispatcher has not picked it up yet.
	JobSubmitted JobStatusType = "Submitted"

	// JobWaiting means the job has been accepted by the dispatcher but has
	// not been released to a backend yet. It is held in the waiting queue.
	JobWaiting JobStatusType = "Waiting"

	// JobQueued means the job has been submitted to the backend (e.g. via
	// qsub) and is sitting in the cluster scheduler's queue.
	JobQueued JobStatusType = "Queued"

	// JobRunning means the backend reports the job as executing.
	JobRunning JobStatusType = "Running"

	// JobCompleted means the folding tool terminated with exit status zero.
	JobCompleted JobStatusType = "Completed"

	// JobFailed means the folding tool terminated with a non-zero exit
	// status, or the backend lost the job. A rerunnable job is re-queued
	// instead of entering this status on its first failure.
	JobFailed JobStatusType = "Failed"

	// JobCanceled means the job was deleted by the user before it finished.
	JobCanceled JobStatusType = "Canceled"
)

// Number of allocated GPUs of each folding job. Zero means the job stays
// in the waiting queue for this round.
type JobScheduleResult map[string]int
