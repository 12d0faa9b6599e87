package jobs

import (
	"os"
	"sync"
	"time"

	"github.com/yourusername/media-forge/internal/ytdlp"
)

// Job は1件のダウンロードジョブです。
// 作成後に変わらないフィールドは公開し、状態は mu で保護します。
type Job struct {
	ID           string
	SourceURL    string
	Kind         Kind
	Quality      string
	AudioBitrate int
	Credential   string
	TargetPath   string
	Filename     string
	Watermark    WatermarkRequest
	CreatedAt    time.Time
	ExpiresAt    time.Time

	mu         sync.Mutex
	status     Status
	progress   float64
	errMessage string
	proc       *os.Process
	evicted    bool
}

// Snapshot は現在の状態のコピーを返します。
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		JobID:     j.ID,
		SourceURL: j.SourceURL,
		Kind:      j.Kind,
		Quality:   j.Quality,
		Status:    j.status,
		Progress:  j.progress,
		Filename:  j.Filename,
		Error:     j.errMessage,
		Watermark: j.Watermark.Requested,
		CreatedAt: j.CreatedAt,
		ExpiresAt: j.ExpiresAt,
	}
}

// Status は現在の状態を返します。
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) downloadOptions() ytdlp.DownloadOptions {
	height, _ := ytdlp.ParseHeight(j.Quality)
	return ytdlp.DownloadOptions{
		URL:          j.SourceURL,
		OutputPath:   j.TargetPath,
		Audio:        j.Kind == KindAudio,
		Height:       height,
		AudioBitrate: j.AudioBitrate,
		Credential:   j.Credential,
	}
}

// transition は終了状態でなければ状態を to に変えます。
// progress が負の場合は進捗を変更しません。
func (j *Job) transition(to Status, progress float64) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() || j.evicted {
		return false
	}
	j.status = to
	if progress >= 0 {
		j.progress = progress
	}
	return true
}

// fail は失敗状態にし、メッセージを記録します。
func (j *Job) fail(message string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() || j.evicted {
		return false
	}
	j.status = StatusFailed
	j.errMessage = message
	return true
}

// recordProgress はステージ1の進捗を反映します。
// 進捗は減少せず、100% に達すると merging になります。変化がなければ false を返します。
func (j *Job) recordProgress(pct float64) (Status, float64, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch j.status {
	case StatusStarting, StatusDownloading, StatusMerging:
	default:
		return j.status, j.progress, false
	}
	if j.evicted {
		return j.status, j.progress, false
	}
	if pct < j.progress {
		pct = j.progress
	}
	next := StatusDownloading
	if pct >= 100 {
		next = StatusMerging
	}
	if pct == j.progress && next == j.status {
		return j.status, j.progress, false
	}
	j.status = next
	j.progress = pct
	return j.status, j.progress, true
}

// attach は起動した子プロセスをジョブに結び付けます。
// すでに終了状態ならば結び付けず false を返すので、呼び出し側が終了させます。
func (j *Job) attach(p *os.Process) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() || j.evicted {
		return false
	}
	j.proc = p
	return true
}

func (j *Job) detach() {
	j.mu.Lock()
	j.proc = nil
	j.mu.Unlock()
}

// cancel はキャンセル状態にし、終了させるべき子プロセスを返します。
// すでに終了状態なら changed は false です。
func (j *Job) cancel() (proc *os.Process, changed bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() || j.evicted {
		return nil, false
	}
	j.status = StatusCancelled
	return j.proc, true
}

// evict は掃除対象として印を付け、終了させるべき子プロセスを返します。
func (j *Job) evict() *os.Process {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.evicted = true
	return j.proc
}

// active は状態を変えてよいかどうかを返します。
func (j *Job) active() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return !j.status.Terminal() && !j.evicted
}
