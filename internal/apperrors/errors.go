package apperrors

import (
	"errors"
	"fmt"
)

// ValidationError 请求格式/取值非法，拒绝于任何写入之前
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError 目标实体不存在
type NotFoundError struct {
	Kind string // template, section, subsection, version, job, snapshot, data source
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func NewNotFound(kind string, id any) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: fmt.Sprintf("%v", id)}
}

// ConflictError 位置重复、作业占用、版本号并发冲突等，调用方可重试
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflict(format string, args ...any) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// RequiredInput 缺失的运行输入以及引用它的小节
type RequiredInput struct {
	Key     string           `json:"key"`
	Label   string           `json:"label"`
	Type    string           `json:"type"`
	Options []string         `json:"options,omitempty"`
	UsedBy  []RequiredInputUse `json:"used_by"`
}

type RequiredInputUse struct {
	SubsectionID    uint   `json:"subsection_id"`
	SectionTitle    string `json:"section_title"`
	SubsectionTitle string `json:"subsection_title"`
	ParameterKey    string `json:"parameter_key"`
}

// BlockingError 使某个小节无法参与生成的结构性错误
type BlockingError struct {
	SubsectionID       uint   `json:"subsection_id"`
	SubsectionTitle    string `json:"subsection_title"`
	SubsectionPosition int    `json:"subsection_position"`
	SectionTitle       string `json:"section_title"`
	Reason             string `json:"reason"`
}

// BlockedError 生成前置检查未通过；携带完整 requirements 载荷供调用方补救后重试
type BlockedError struct {
	RequiredInputs []RequiredInput `json:"required_inputs"`
	BlockingErrors []BlockingError `json:"blocking_errors"`
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("generation blocked: %d required inputs, %d blocking errors",
		len(e.RequiredInputs), len(e.BlockingErrors))
}

// GenerationError 单个小节的外部生成失败，对作业非致命
type GenerationError struct {
	SubsectionID uint
	Err          error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for subsection %d: %v", e.SubsectionID, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// StorageError 持久层不可用，对当前操作/作业致命
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func NewStorage(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// IsNotFound 判断是否为 NotFoundError（含包装）
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func AsBlocked(err error) (*BlockedError, bool) {
	var b *BlockedError
	if errors.As(err, &b) {
		return b, true
	}
	return nil, false
}
