package scheduler

import (
	"context"
	"errors"
	"testing"

	"leadflow_backend/internal/assignment"
	followupservice "leadflow_backend/internal/followup/service"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSchedulerConfig struct {
	redisURL     string
	tlsInsecure  bool
	queue        string
	followupCron string
	retryCron    string
}

func (s stubSchedulerConfig) GetRedisURL() string            { return s.redisURL }
func (s stubSchedulerConfig) GetRedisTLSInsecure() bool      { return s.tlsInsecure }
func (s stubSchedulerConfig) GetAsynqQueueName() string      { return s.queue }
func (s stubSchedulerConfig) GetAsynqConcurrency() int       { return 2 }
func (s stubSchedulerConfig) GetFollowupCron() string        { return s.followupCron }
func (s stubSchedulerConfig) GetAssignmentRetryCron() string { return s.retryCron }

type fakeRunner struct {
	calls  int
	report followupservice.BatchReport
	err    error
}

func (f *fakeRunner) ProcessDue(context.Context) (followupservice.BatchReport, error) {
	f.calls++
	return f.report, f.err
}

type fakeRetrier struct {
	limits []int
	err    error
}

func (f *fakeRetrier) RetryUnassigned(_ context.Context, limit int) (assignment.RetrySummary, error) {
	f.limits = append(f.limits, limit)
	return assignment.RetrySummary{}, f.err
}

func TestParsePayloadsAcceptEmptyBody(t *testing.T) {
	fp, err := ParseFollowupsProcessPayload(asynq.NewTask(TaskFollowupsProcess, nil))
	require.NoError(t, err)
	assert.Empty(t, fp.TriggeredBy)

	rp, err := ParseAssignmentsRetryPayload(asynq.NewTask(TaskAssignmentsRetry, nil))
	require.NoError(t, err)
	assert.Zero(t, rp.Limit)

	_, err = ParseAssignmentsRetryPayload(asynq.NewTask(TaskAssignmentsRetry, []byte("{")))
	assert.Error(t, err)
}

func TestRetryTaskCarriesLimit(t *testing.T) {
	task, err := NewAssignmentsRetryTask(AssignmentsRetryPayload{Limit: 25})
	require.NoError(t, err)
	assert.Equal(t, TaskAssignmentsRetry, task.Type())

	payload, err := ParseAssignmentsRetryPayload(task)
	require.NoError(t, err)
	assert.Equal(t, 25, payload.Limit)
}

func TestJobsRunFollowups(t *testing.T) {
	runner := &fakeRunner{report: followupservice.BatchReport{Skipped: true}}
	jobs := NewJobs(runner, nil, nil)

	require.NoError(t, jobs.RunFollowups(context.Background()))
	assert.Equal(t, 1, runner.calls)

	runner.err = errors.New("claim failed")
	assert.Error(t, jobs.RunFollowups(context.Background()))
}

func TestJobsRetryUsesDefaultLimit(t *testing.T) {
	retrier := &fakeRetrier{}
	jobs := NewJobs(nil, retrier, nil)

	require.NoError(t, jobs.RunAssignmentRetry(context.Background(), 0))
	require.NoError(t, jobs.RunAssignmentRetry(context.Background(), 7))
	assert.Equal(t, []int{defaultRetryLimit, 7}, retrier.limits)
}

func TestJobsWithoutServicesAreNoops(t *testing.T) {
	jobs := NewJobs(nil, nil, nil)
	assert.NoError(t, jobs.RunFollowups(context.Background()))
	assert.NoError(t, jobs.RunAssignmentRetry(context.Background(), 0))
}

func TestConnectionRequiresRedisURL(t *testing.T) {
	_, err := NewClient(stubSchedulerConfig{})
	assert.Error(t, err)

	_, _, err = connection(stubSchedulerConfig{redisURL: "redis://localhost:6379/2"})
	require.NoError(t, err)
}

func TestConnectionDefaultsQueueAndTLS(t *testing.T) {
	opt, queue, err := connection(stubSchedulerConfig{redisURL: "rediss://user:pw@cache:6380/1", tlsInsecure: true})
	require.NoError(t, err)
	assert.Equal(t, "default", queue)
	assert.Equal(t, "cache:6380", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 1, opt.DB)
	require.NotNil(t, opt.TLSConfig)
	assert.True(t, opt.TLSConfig.InsecureSkipVerify)
}

func TestCronRunnerSchedulesBothJobs(t *testing.T) {
	cfg := stubSchedulerConfig{followupCron: "@every 5m", retryCron: "@every 10m"}
	runner, err := NewCronRunner(context.Background(), cfg, NewJobs(nil, nil, nil), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, runner.Entries())
}

func TestCronRunnerRejectsBadSchedule(t *testing.T) {
	cfg := stubSchedulerConfig{followupCron: "every five minutes", retryCron: "@every 10m"}
	_, err := NewCronRunner(context.Background(), cfg, NewJobs(nil, nil, nil), nil)
	assert.Error(t, err)
}
