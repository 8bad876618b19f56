package scheduler

import (
	"testing"
	"time"

	"github.com/origamihpc/origami/pkg/common/foldingjob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeJob(t *testing.T, name string) foldingjob.FoldingJob {
	t.Helper()

	spec := foldingjob.JobSpec{
		Name:      name,
		Tool:      "af2_predict",
		CondaEnv:  "af2",
		Fasta:     "designs.fasta",
		OutputDir: "out/",
	}
	job, err := foldingjob.NewFoldingJob(spec, "folding-jobs", time.Now())
	require.NoError(t, err)
	return *job
}

func TestFoldingJobQueue(t *testing.T) {
	q, err := newFoldingJobQueue()
	require.NoError(t, err)
	assert.True(t, q.Empty())

	q.Enqueue(makeJob(t, "fold-a"))
	q.Enqueue(makeJob(t, "fold-b"))
	q.Enqueue(makeJob(t, "fold-c"))
	assert.Equal(t, 3, q.Size())
	assert.False(t, q.Empty())

	got, err := q.Get("fold-b")
	require.NoError(t, err)
	assert.Equal(t, "fold-b", got.JobName)

	require.NoError(t, q.Delete("fold-b"))
	assert.Equal(t, 2, q.Size())
	assert.Equal(t, "fold-a", q.Queue[0].JobName)
	assert.Equal(t, "fold-c", q.Queue[1].JobName)

	_, err = q.Get("fold-b")
	assert.Error(t, err)
	assert.Error(t, q.Delete("fold-b"))
}
