package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebalancr/rebalancr/pkg/logger"
)

type countingJob struct {
	runs int
	err  error
}

func (j *countingJob) Run() error { j.runs++; return j.err }
func (j *countingJob) Name() string {
	return "counting_job"
}

func TestRunNow(t *testing.T) {
	s := New(nil, logger.New(logger.Config{Level: "error"}))

	job := &countingJob{}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)

	failing := &countingJob{err: errors.New("job broke")}
	err := s.RunNow(failing)
	require.Error(t, err)
	assert.Equal(t, 1, failing.runs)
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(nil, logger.New(logger.Config{Level: "error"}))
	assert.Error(t, s.AddJob("not a schedule", &countingJob{}))
	assert.NoError(t, s.AddJob("0 */5 * * * *", &countingJob{}))
}
