package storage

import "time"

// 向量刷新事件支持的实体类型
const (
	RefreshKindCandidate = "candidate"
	RefreshKindJob       = "job"
)

// EmbeddingRefreshMessage 单实体向量刷新事件。
// 候选人或岗位的结构化字段变更后发布，由后台消费者重新生成向量。
type EmbeddingRefreshMessage struct {
	MessageID  string    `json:"message_id"`
	Kind       string    `json:"kind"` // candidate 或 job
	EntityID   string    `json:"entity_id"`
	Reason     string    `json:"reason,omitempty"` // updated / stale_sweep
	EnqueuedAt time.Time `json:"enqueued_at"`
}
