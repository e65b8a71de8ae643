package strategy

import (
	"github.com/LouYuanbo1/leadagent/internal/domain/entity"
)

// Status 执行器状态
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StepResult 单个步骤的执行结果,步骤处理函数不返回 error
type StepResult struct {
	Success bool
	Records []entity.Record
	Count   int
	Value   map[string]any
	Err     error
}

func Succeed(records []entity.Record) StepResult {
	return StepResult{Success: true, Records: records, Count: len(records)}
}

func Fail(err error) StepResult {
	return StepResult{Success: false, Err: err}
}

// StepReport 执行记录中的单步摘要
type StepReport struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Error   string `json:"error,omitempty"`
}

// ExecutionResult 一次策略执行的结果
type ExecutionResult struct {
	Success     bool            `json:"success"`
	Status      Status          `json:"-"`
	Data        []entity.Record `json:"data"`
	Count       int             `json:"count"`
	Steps       []StepReport    `json:"steps"`
	NavigatedTo string          `json:"navigatedTo,omitempty"`
	Err         error           `json:"-"`
}

// Assessment 模型对一条记录的相关性判断,按下标与记录对应
type Assessment struct {
	Relevant bool    `json:"relevant"`
	Priority int     `json:"priority"`
	Reason   string  `json:"reason"`
	Score    float64 `json:"score,omitempty"`
}
