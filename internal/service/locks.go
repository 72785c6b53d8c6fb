package service

import (
	"sync"

	"github.com/alexwday/report-designer-sub001/internal/service/locks"
)

// Locks 进程内锁域。
// 模板锁串行化结构编辑与快照操作；小节锁串行化同一小节的版本写入；
// 会话锁串行化消息追加。不同模板之间互不竞争。
type Locks struct {
	templates     *locks.Keyed
	subsections   *locks.Keyed
	conversations *locks.Keyed
}

func NewLocks() *Locks {
	return &Locks{
		templates:     locks.NewKeyed(),
		subsections:   locks.NewKeyed(),
		conversations: locks.NewKeyed(),
	}
}

func (l *Locks) Template(templateID uint) *sync.Mutex {
	return l.templates.Get(templateID)
}

func (l *Locks) Subsection(subsectionID uint) *sync.Mutex {
	return l.subsections.Get(subsectionID)
}

func (l *Locks) Conversation(templateID uint) *sync.Mutex {
	return l.conversations.Get(templateID)
}
