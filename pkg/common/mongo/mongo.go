package mongo

import (
	"os"

	"github.com/origamihpc/origami/config"
	"gopkg.in/mgo.v2"
	"k8s.io/klog/v2"
)

const (
	defaultHost = "localhost"
	defaultPort = "27017"

	// Assumed folding speed of an unseen job category, refined as runs of
	// the category finish.
	baseSecPerResidue = 1.0
)

// FoldingJobInfo is the per-job record kept in mongodb. The dispatcher
// updates it as the job moves through its phases.
type FoldingJobInfo struct {
	Name                    string  `bson:"name" json:"name"`
	Status                  string  `bson:"status" json:"status"`
	BackendJobID            string  `bson:"backend_job_id" json:"backend_job_id"`
	Node                    string  `bson:"node" json:"node"`
	Residues                int32   `bson:"residues" json:"residues"`
	WaitingTimeSec          float32 `bson:"waiting_time_sec" json:"waiting_time_sec"`
	RunningTimeSec          float32 `bson:"running_time_sec" json:"running_time_sec"`
	GpuTimeSec              float32 `bson:"gpu_time_sec" json:"gpu_time_sec"`
	EstimatedRunningTimeSec float32 `bson:"estimated_running_time_sec" json:"estimated_running_time_sec"`
	SecPerResidue           float32 `bson:"sec_per_residue" json:"sec_per_residue"`
	ExitCode                int32   `bson:"exit_code" json:"exit_code"`
	Attempts                int32   `bson:"attempts" json:"attempts"`
}

type JobRunning struct {
	Name string `bson:"name" json:"name"`
}

// ConnectMongo connects to a mongo session. Host and port are taken from
// the environment and default to a mongod on the head node.
// TODO(origami): May require username and password in the future
func ConnectMongo() *mgo.Session {
	host := os.Getenv(config.EnvMongoHost)
	if host == "" {
		host = defaultHost
	}
	port := os.Getenv(config.EnvMongoPort)
	if port == "" {
		port = defaultPort
	}

	url := host + ":" + port
	session, err := mgo.Dial(url)
	if err != nil {
		klog.ErrorS(err, "Failed to connect to mongodb", "url", url)
		klog.Flush()
		os.Exit(1)
	} else {
		klog.InfoS("Connected to mongodb", "url", url)
	}
	return session
}

// CreateBaseJobInfo creates a FoldingJobInfo that assumes the base folding
// speed for the job category.
func CreateBaseJobInfo(jobName string) FoldingJobInfo {
	info := FoldingJobInfo{
		Name:                    jobName,
		Status:                  "",
		BackendJobID:            "",
		Node:                    "",
		Residues:                0,
		WaitingTimeSec:          0.0,
		RunningTimeSec:          0.0,
		GpuTimeSec:              0.0,
		EstimatedRunningTimeSec: 0.0,
		SecPerResidue:           baseSecPerResidue,
		ExitCode:                0,
		Attempts:                0,
	}

	return info
}
