package statemachine

// ItemStatus 作业内单个小节的状态
type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusInProgress ItemStatus = "in_progress"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusFailed     ItemStatus = "failed"
)

var allowedItemTransitions = map[[2]ItemStatus]bool{
	{ItemStatusPending, ItemStatusInProgress}:   true,
	{ItemStatusInProgress, ItemStatusCompleted}: true,
	{ItemStatusInProgress, ItemStatusFailed}:    true,
	// 启动前即失效（如小节被删除）
	{ItemStatusPending, ItemStatusFailed}: true,
}

func CanTransitionItem(from, to ItemStatus) bool {
	return allowedItemTransitions[[2]ItemStatus{from, to}]
}

// IsItemTerminal 小节是否到达终态
func IsItemTerminal(status ItemStatus) bool {
	return status == ItemStatusCompleted || status == ItemStatusFailed
}
