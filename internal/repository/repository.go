package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/alexwday/report-designer-sub001/internal/model"
)

// ErrNotFound 记录不存在错误
var ErrNotFound = errors.New("record not found")

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

type TemplateRepository interface {
	Create(t *model.Template) error
	List() ([]model.Template, error)
	Get(id uint) (*model.Template, error)
	Save(t *model.Template) error
	Delete(id uint) error
}

type SectionRepository interface {
	// CreateAt 在 position 处插入（nil 表示追加），同模板内后续 section 顺移
	CreateAt(section *model.Section, position *int) error
	Get(id uint) (*model.Section, error)
	GetWithSubsections(id uint) (*model.Section, error)
	// ListByTemplate 按 position 升序返回，预载各 section 的小节
	ListByTemplate(templateID uint) ([]model.Section, error)
	Save(section *model.Section) error
	// Delete 删除并压缩位置，保持 1..N 连续
	Delete(id uint) error
	// Reorder 将 section 移到 newPosition，其余原子重排号
	Reorder(id uint, newPosition int) error
}

type SubsectionRepository interface {
	CreateAt(sub *model.Subsection, position *int) error
	Get(id uint) (*model.Subsection, error)
	ListBySection(sectionID uint) ([]model.Subsection, error)
	Save(sub *model.Subsection) error
	Delete(id uint) error
	Reorder(id uint, newPosition int) error
	// TemplateID 反查小节所属模板
	TemplateID(subsectionID uint) (uint, error)
}

// VersionWrite 一次版本写入的输入。nil 字段表示沿用小节当前值。
type VersionWrite struct {
	Content           *string
	ContentType       *string
	Instructions      *string
	Notes             *string
	GeneratedBy       string
	IsFinal           bool
	GenerationContext string
	Title             *string
}

type VersionRepository interface {
	// SaveVersion 在一个事务内：计算 MAX(version)+1、插入版本行、刷新小节缓存视图。
	// 并发写入依赖 (subsection_id, version_number) 唯一索引兜底。
	SaveVersion(subsectionID uint, write VersionWrite) (*model.SubsectionVersion, error)
	History(subsectionID uint) ([]model.SubsectionVersion, error)
	GetVersion(versionID uint) (*model.SubsectionVersion, error)
	MarkFinal(versionID uint) error
}

type JobRepository interface {
	Create(job *model.GenerationJob) error
	GetByJobID(jobID string) (*model.GenerationJob, error)
	GetWithItems(jobID string) (*model.GenerationJob, error)
	Save(job *model.GenerationJob) error
	// HasActive 模板是否已有 pending/in_progress 作业
	HasActive(templateID uint) (bool, error)
	// UpdateItem 持久化单个小节进度，并同步作业 current_index
	UpdateItem(item *model.GenerationJobItem, currentIndex int) error
	FailStale(templateID uint, reason string) (int64, error)
}

type SnapshotRepository interface {
	// Create 在事务内取 MAX(version_number)+1 并插入
	Create(snap *model.TemplateSnapshot) error
	ListByTemplate(templateID uint, limit int) ([]model.TemplateSnapshot, error)
	Get(id uint) (*model.TemplateSnapshot, error)
	// RestoreTree 在一个事务内用快照内容整体替换模板的章节树，
	// 返回恢复的章节数。非空内容的小节会落一条 import 版本。
	RestoreTree(templateID uint, payload *model.SnapshotPayload) (int, error)
	// CreateTree 新建模板并按快照内容建树（fork 用）
	CreateTree(t *model.Template, payload *model.SnapshotPayload) error
}

type PresetRepository interface {
	Get(templateID uint) (*model.RunInputsPreset, error)
	// Upsert 覆盖写入模板预设
	Upsert(templateID uint, runInputs string) (*model.RunInputsPreset, error)
}

type ConversationRepository interface {
	GetOrCreate(templateID uint) (*model.Conversation, error)
	// AppendMessage 在事务内取 MAX(sequence_number)+1 并插入，保证无空洞
	AppendMessage(msg *model.ConversationMessage) error
	History(conversationID uint, limit int) ([]model.ConversationMessage, error)
}

type RegistryRepository interface {
	List(activeOnly bool) ([]model.DataSource, error)
	Get(id string) (*model.DataSource, error)
	Upsert(ds *model.DataSource) error
	Count() (int64, error)
}

type UploadRepository interface {
	Create(u *model.Upload) error
	ListByTemplate(templateID uint) ([]model.Upload, error)
	Get(id uint) (*model.Upload, error)
	Delete(id uint) error
}
