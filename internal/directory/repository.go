package directory

import (
	"sort"
	"sync"
)

// audienceEntry 记录一个用户当前在索引中的位置
type audienceEntry struct {
	branch string
	rank   int
}

// audienceIndex 是按 分支+年级 组织的内存索引，用于计算提问通知的受众。
// 它在启动时从数据库全量加载，之后随资料变更做增量更新，
// 避免每次提问都重新查询整个分支。
type audienceIndex struct {
	mu     sync.RWMutex
	byUser map[string]audienceEntry
	// branch -> rank -> set of user ids
	byBranch map[string]map[int]map[string]struct{}
}

func newAudienceIndex() *audienceIndex {
	return &audienceIndex{
		byUser:   make(map[string]audienceEntry),
		byBranch: make(map[string]map[int]map[string]struct{}),
	}
}

// globalIndex 是索引的私有单例
var globalIndex = newAudienceIndex()

// put 在持有写锁时调用，返回索引是否发生了变化
func (idx *audienceIndex) put(userID, branch, year string) bool {
	rank, ok := YearRank(year)
	old, existed := idx.byUser[userID]

	// 年级无法识别的用户不会出现在任何受众中
	if !ok {
		if existed {
			idx.removeLocked(userID, old)
			return true
		}
		return false
	}

	next := audienceEntry{branch: branch, rank: rank}
	if existed && old == next {
		return false
	}
	if existed {
		idx.removeLocked(userID, old)
	}

	ranks, ok := idx.byBranch[branch]
	if !ok {
		ranks = make(map[int]map[string]struct{})
		idx.byBranch[branch] = ranks
	}
	members, ok := ranks[rank]
	if !ok {
		members = make(map[string]struct{})
		ranks[rank] = members
	}
	members[userID] = struct{}{}
	idx.byUser[userID] = next
	return true
}

func (idx *audienceIndex) removeLocked(userID string, e audienceEntry) {
	delete(idx.byUser, userID)
	ranks := idx.byBranch[e.branch]
	if ranks == nil {
		return
	}
	delete(ranks[e.rank], userID)
	if len(ranks[e.rank]) == 0 {
		delete(ranks, e.rank)
	}
	if len(ranks) == 0 {
		delete(idx.byBranch, e.branch)
	}
}

// Apply 增量更新单个用户
func (idx *audienceIndex) Apply(userID, branch, year string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.put(userID, branch, year)
}

// Reset 用一份完整的资料列表替换索引内容，返回发生变化的用户数
func (idx *audienceIndex) Reset(profiles []Profile) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	seen := make(map[string]struct{}, len(profiles))
	changed := 0
	for _, p := range profiles {
		seen[p.ID] = struct{}{}
		if idx.put(p.ID, p.Branch, p.Year) {
			changed++
		}
	}
	for userID, e := range idx.byUser {
		if _, ok := seen[userID]; !ok {
			idx.removeLocked(userID, e)
			changed++
		}
	}
	return changed
}

// Audience 返回分支内年级严格高于 minRank 的用户，排除 excludeID，按ID排序
func (idx *audienceIndex) Audience(branch string, minRank int, excludeID string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []string
	for rank, members := range idx.byBranch[branch] {
		if rank <= minRank {
			continue
		}
		for userID := range members {
			if userID != excludeID {
				out = append(out, userID)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Size 返回索引中的用户数
func (idx *audienceIndex) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byUser)
}
