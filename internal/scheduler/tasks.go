package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskFollowupsProcess = "followups.process"

const TaskAssignmentsRetry = "assignments.retry"

type FollowupsProcessPayload struct {
	TriggeredBy string `json:"triggeredBy,omitempty"`
}

type AssignmentsRetryPayload struct {
	Limit int `json:"limit,omitempty"`
}

func NewFollowupsProcessTask(payload FollowupsProcessPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFollowupsProcess, data), nil
}

func ParseFollowupsProcessPayload(task *asynq.Task) (FollowupsProcessPayload, error) {
	var payload FollowupsProcessPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return FollowupsProcessPayload{}, err
	}
	return payload, nil
}

func NewAssignmentsRetryTask(payload AssignmentsRetryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAssignmentsRetry, data), nil
}

func ParseAssignmentsRetryPayload(task *asynq.Task) (AssignmentsRetryPayload, error) {
	var payload AssignmentsRetryPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AssignmentsRetryPayload{}, err
	}
	return payload, nil
}
