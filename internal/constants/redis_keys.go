package constants

// Redis Key 前缀和格式常量
// 统一命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// SearchModulePrefix 搜索模块
	SearchModulePrefix = "search"
	// JobModulePrefix 岗位模块
	JobModulePrefix = "job"
	// EmbeddingModulePrefix 向量模块
	EmbeddingModulePrefix = "embedding"

	// EntitySession 搜索会话实体
	EntitySession = "session"
	// EntityLock 分布式锁实体
	EntityLock = "lock"
	// EntityVector 向量实体
	EntityVector = "vector"

	// KeySearchSession 岗位排序结果会话缓存 (ZSET)
	// 格式: app:search:session:{jobID}
	KeySearchSession = AppPrefix + ":" + SearchModulePrefix + ":" + EntitySession + ":%s"

	// KeySearchLock 岗位排序分布式锁 (STRING)
	// 格式: app:search:lock:{jobID}
	KeySearchLock = AppPrefix + ":" + SearchModulePrefix + ":" + EntityLock + ":%s"

	// KeyJobVector 岗位查询向量缓存 (HASH: vector JSON + model_version)
	// 格式: app:job:vector:{jobID}
	KeyJobVector = AppPrefix + ":" + JobModulePrefix + ":" + EntityVector + ":%s"

	// KeyEmbeddingRefreshLock 单实体向量刷新锁 (STRING)
	// 格式: app:embedding:lock:{kind}:{entityID}
	KeyEmbeddingRefreshLock = AppPrefix + ":" + EmbeddingModulePrefix + ":" + EntityLock + ":%s:%s"
)
