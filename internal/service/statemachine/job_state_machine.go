package statemachine

import (
	"fmt"

	"k8s.io/klog/v2"
)

// JobStatus 定义生成作业的所有可能状态
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"     // 已创建未启动
	JobStatusInProgress JobStatus = "in_progress" // 正在执行
	JobStatusCompleted  JobStatus = "completed"   // 所有目标小节到达终态（无论个别失败）
	JobStatusFailed     JobStatus = "failed"      // 编排器级故障或取消
)

// JobTransition 定义作业状态迁移
type JobTransition struct {
	From JobStatus
	To   JobStatus
}

// JobStateMachine 作业状态机
type JobStateMachine struct {
	allowedTransitions map[JobTransition]bool
}

func NewJobStateMachine() *JobStateMachine {
	sm := &JobStateMachine{
		allowedTransitions: make(map[JobTransition]bool),
	}

	// pending -> in_progress -> completed/failed
	// pending -> failed（启动即失败，如存储不可用）
	transitions := []JobTransition{
		{JobStatusPending, JobStatusInProgress},
		{JobStatusInProgress, JobStatusCompleted},
		{JobStatusInProgress, JobStatusFailed},
		{JobStatusPending, JobStatusFailed},
	}
	for _, t := range transitions {
		sm.allowedTransitions[t] = true
	}
	return sm
}

func (sm *JobStateMachine) CanTransition(from, to JobStatus) bool {
	if from == to {
		return false
	}
	return sm.allowedTransitions[JobTransition{From: from, To: to}]
}

// Transition 执行状态迁移（带日志）
func (sm *JobStateMachine) Transition(from, to JobStatus, jobID string) error {
	if !sm.CanTransition(from, to) {
		klog.V(6).Infof("作业状态迁移被拒绝: jobID=%s, %s -> %s", jobID, from, to)
		return &InvalidStateTransitionError{From: string(from), To: string(to)}
	}
	klog.V(6).Infof("作业状态迁移成功: jobID=%s, %s -> %s", jobID, from, to)
	return nil
}

// InvalidStateTransitionError 无效的状态迁移错误
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid job state transition: %s -> %s", e.From, e.To)
}

// IsTerminal 判断作业状态是否为终止态
func IsTerminal(status JobStatus) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}
