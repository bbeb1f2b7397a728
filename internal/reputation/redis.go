package reputation

// --- Redis 键名常量 ---

const (
	// RankingKey 是一个 Redis Sorted Set 的键，镜像每个用户的金币数。
	// Score: 金币数
	// Member: 用户ID
	RankingKey = "reputation:ranking"
)

// DefaultLeaderboardSize 是排行榜默认展示的人数
const DefaultLeaderboardSize = 3
