package foldingjob

import (
	"errors"
	"time"

	"github.com/origamihpc/origami/pkg/common/types"
)

const (
	defaultNodes = 1
	defaultPPN   = 4
	defaultGPUs  = 1
)

// JobMetrics represents time metrics of a job.
type JobMetrics struct {
	Name        string `bson:"name" json:"name"`
	LastUpdated time.Time

	RunningTime time.Duration
	WaitingTime time.Duration
	GpuTime     time.Duration
	TotalTime   time.Duration

	LastRunningTime time.Duration
	LastWaitingTime time.Duration
	LastGpuTime     time.Duration
}

// JobSpec is the user-facing YAML document accepted by the submission
// service and the CLI.
type JobSpec struct {
	Name       string `json:"name"`
	Tool       string `json:"tool"`
	CondaEnv   string `json:"condaEnv"`
	Fasta      string `json:"fasta"`
	OutputDir  string `json:"outputDir"`
	WorkDir    string `json:"workDir,omitempty"`
	Queue      string `json:"queue,omitempty"`
	Nodes      int    `json:"nodes,omitempty"`
	PPN        int    `json:"ppn,omitempty"`
	GPUs       *int   `json:"gpus,omitempty"`
	Rerunnable *bool  `json:"rerunnable,omitempty"`
	Backend    string `json:"backend,omitempty"`
	FilterPlan string `json:"filterPlan,omitempty"`
}

// FoldingJob represents a single folding job in the queue.
type FoldingJob struct {
	JobName       string              `bson:"name" json:"name"`
	JobCollection string              `bson:"collection" json:"collection"`
	Submitted     time.Time           `bson:"submitted" json:"submitted"`
	Status        types.JobStatusType `bson:"status" json:"status"`
	Config        JobConfig           `bson:"config" json:"config"`
	Info          JobInfo             `bson:"info" json:"info"`
	Priority      int
	Attempts      int `bson:"attempts" json:"attempts"`
}

// JobConfig represents the folding configurations specified by the user.
// Resource fields default to the canonical single-node GPU request
// (1 node, 4 processors, 1 GPU) when omitted from the job spec.
type JobConfig struct {
	Tool       string `bson:"tool" json:"tool"`
	CondaEnv   string `bson:"conda_env" json:"conda_env"`
	Fasta      string `bson:"fasta" json:"fasta"`
	OutputDir  string `bson:"output_dir" json:"output_dir"`
	WorkDir    string `bson:"work_dir" json:"work_dir"`
	Queue      string `bson:"queue" json:"queue"`
	Nodes      int    `bson:"nodes" json:"nodes"`
	PPN        int    `bson:"ppn" json:"ppn"`
	GPUs       int    `bson:"gpus" json:"gpus"`
	Rerunnable bool   `bson:"rerunnable" json:"rerunnable"`
	Backend    string `bson:"backend" json:"backend"`
	FilterPlan string `bson:"filter_plan" json:"filter_plan"`
}

// JobInfo represents history/estimated information of a folding job.
// It is refreshed from mongodb by the dispatcher during resched.
type JobInfo struct {
	Residues                int
	EstimatedRunningTimeSec float32
}

// NewFoldingJob creates a new folding job from a decoded job spec.
func NewFoldingJob(spec JobSpec, collection string, submitted time.Time) (*FoldingJob, error) {
	if spec.Name == "" {
		return nil, errors.New("job spec missing name")
	}
	if spec.Tool == "" {
		return nil, errors.New("job spec missing tool")
	}
	if spec.CondaEnv == "" {
		return nil, errors.New("job spec missing condaEnv")
	}
	if spec.Fasta == "" {
		return nil, errors.New("job spec missing fasta")
	}
	if spec.OutputDir == "" {
		return nil, errors.New("job spec missing outputDir")
	}

	config := JobConfig{
		Tool:       spec.Tool,
		CondaEnv:   spec.CondaEnv,
		Fasta:      spec.Fasta,
		OutputDir:  spec.OutputDir,
		WorkDir:    spec.WorkDir,
		Queue:      spec.Queue,
		Nodes:      spec.Nodes,
		PPN:        spec.PPN,
		GPUs:       defaultGPUs,
		Rerunnable: true,
		Backend:    spec.Backend,
		FilterPlan: spec.FilterPlan,
	}
	if config.Nodes == 0 {
		config.Nodes = defaultNodes
	}
	if config.PPN == 0 {
		config.PPN = defaultPPN
	}
	if spec.GPUs != nil {
		config.GPUs = *spec.GPUs
	}
	if spec.Rerunnable != nil {
		config.Rerunnable = *spec.Rerunnable
	}
	if config.Backend == "" {
		config.Backend = "pbs"
	}

	// JobInfo would be updated from mongodb by the dispatcher during resched.
	info := JobInfo{}

	t := &FoldingJob{
		JobName:       spec.Name,
		JobCollection: collection,
		Submitted:     submitted,
		Status:        types.JobSubmitted,
		Config:        config,
		Info:          info,
		Priority:      0,
	}
	return t, nil
}

func NewJobMetrics(name string) *JobMetrics {
	m := &JobMetrics{
		Name:            name,
		LastUpdated:     time.Now(),
		RunningTime:     0,
		WaitingTime:     0,
		GpuTime:         0,
		TotalTime:       0,
		LastRunningTime: 0,
		LastWaitingTime: 0,
		LastGpuTime:     0,
	}
	return m
}
