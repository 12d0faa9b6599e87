package jobs

import (
	"sort"
	"sync"
	"time"
)

// Table はジョブをメモリ上に保持します。
// 永続化はせず、保持期間を過ぎたジョブは Expired で取り出して破棄します。
type Table struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	ttl  time.Duration
}

// NewTable は Table を作成します。
func NewTable(ttl time.Duration) *Table {
	return &Table{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

// TTL は保持期間を返します。
func (t *Table) TTL() time.Duration {
	return t.ttl
}

// Insert はジョブを登録します。同じIDがすでに存在する場合は false を返します。
func (t *Table) Insert(job *Job) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.jobs[job.ID]; ok {
		return false
	}
	if job.ExpiresAt.IsZero() && t.ttl > 0 {
		job.ExpiresAt = job.CreatedAt.Add(t.ttl)
	}
	t.jobs[job.ID] = job
	return true
}

// Get はジョブを取得します。
func (t *Table) Get(id string) (*Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	return job, ok
}

// List は作成順に並べた全ジョブのスナップショットを返します。
func (t *Table) List() []Snapshot {
	t.mu.RLock()
	jobs := make([]*Job, 0, len(t.jobs))
	for _, job := range t.jobs {
		jobs = append(jobs, job)
	}
	t.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(jobs))
	for _, job := range jobs {
		snapshots = append(snapshots, job.Snapshot())
	}
	sort.Slice(snapshots, func(i, k int) bool {
		return snapshots[i].CreatedAt.Before(snapshots[k].CreatedAt)
	})
	return snapshots
}

// Len は登録中のジョブ数を返します。
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs)
}

// Expired は now の時点で保持期間を過ぎたジョブを表から取り除いて返します。
// 状態に関係なく取り除きます。
func (t *Table) Expired(now time.Time) []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	var expired []*Job
	for id, job := range t.jobs {
		if now.Sub(job.CreatedAt) > t.ttl {
			expired = append(expired, job)
			delete(t.jobs, id)
		}
	}
	return expired
}
