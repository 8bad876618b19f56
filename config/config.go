package config

const (
	Name    = "origami"
	Msg     = "Origami Scheduler - protein folding batch scheduler"
	Version = "0.2.0"

	// Port of the submission service, SchedulerPort of the dispatcher.
	Port          = "55587"
	SchedulerPort = "55588"

	EntryPoint = "/api/v1/foldingjobs"
	Namespace  = "origami-scheduler"

	// Message queue shared by the submission service and the dispatcher.
	JobMsgQueue = "origami-jobs"
)

// Environment variables understood by the daemons. All of them have
// defaults that suit a single head-node deployment.
const (
	EnvMongoHost   = "ORIGAMI_MONGODB_HOST"
	EnvMongoPort   = "ORIGAMI_MONGODB_PORT"
	EnvRabbitMQURL = "ORIGAMI_RABBITMQ_URL"

	EnvQsubPath  = "ORIGAMI_QSUB_PATH"
	EnvQstatPath = "ORIGAMI_QSTAT_PATH"
	EnvQdelPath  = "ORIGAMI_QDEL_PATH"

	EnvCondaRoot = "ORIGAMI_CONDA_ROOT"

	// Comma-separated GPU device ids schedulable by the local backend,
	// e.g. "0,1,2,3".
	EnvGPUDevices = "ORIGAMI_GPU_DEVICES"

	// GPU capacity the dispatcher assumes for the pbs backend. The PBS
	// server does its own accounting; this only caps how much the
	// dispatcher submits at once.
	EnvPBSTotalGPUs = "ORIGAMI_PBS_GPUS"
)
