// Package jobs はダウンロードジョブの作成、実行、キャンセル、掃除を担います。
package jobs

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/media-forge/internal/apperror"
	"github.com/yourusername/media-forge/internal/compositor"
	"github.com/yourusername/media-forge/internal/config"
	"github.com/yourusername/media-forge/internal/events"
	"github.com/yourusername/media-forge/internal/process"
	"github.com/yourusername/media-forge/internal/storage"
	"github.com/yourusername/media-forge/internal/ytdlp"
)

// Options は Manager の任意設定です。
type Options struct {
	CancelGrace time.Duration // キャンセル後に部分ファイルを消すまでの猶予
	Logger      *log.Logger   // 運用ログ
	Diagnostics *log.Logger   // サブプロセスのエラー行などを残す診断ログ
	Now         func() time.Time
}

// Manager はジョブの作成と状態管理を担います。
type Manager struct {
	table      *Table
	store      *storage.Local
	ytdlp      *ytdlp.Client
	compositor *compositor.Compositor
	publisher  events.Publisher

	cancelGrace time.Duration
	logger      *log.Logger
	diag        *log.Logger
	now         func() time.Time
}

// NewManager は Manager を初期化します。
func NewManager(table *Table, store *storage.Local, client *ytdlp.Client, comp *compositor.Compositor, publisher events.Publisher, opts Options) (*Manager, error) {
	if table == nil {
		return nil, errors.New("table is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if client == nil {
		return nil, errors.New("ytdlp client is nil")
	}
	if comp == nil {
		return nil, errors.New("compositor is nil")
	}
	if publisher == nil {
		return nil, errors.New("publisher is nil")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		table:       table,
		store:       store,
		ytdlp:       client,
		compositor:  comp,
		publisher:   publisher,
		cancelGrace: opts.CancelGrace,
		logger:      opts.Logger,
		diag:        opts.Diagnostics,
		now:         now,
	}, nil
}

// Create は入力を検証してジョブを登録します。実行は Dispatcher が行います。
func (m *Manager) Create(req CreateRequest) (*Job, error) {
	sourceURL := strings.TrimSpace(req.URL)
	if !isHTTPURL(sourceURL) {
		return nil, apperror.InvalidInput("URLが不正です。http または https のURLを指定してください。")
	}

	quality := strings.TrimSpace(req.Quality)
	kind := req.Kind
	switch kind {
	case "":
		kind = KindVideo
		if quality == QualityAudioOnly {
			kind = KindAudio
		}
	case KindVideo, KindAudio:
	default:
		return nil, apperror.InvalidInput("kind は video または audio を指定してください。")
	}
	if kind == KindVideo && quality != "" {
		if _, ok := ytdlp.ParseHeight(quality); !ok {
			return nil, apperror.InvalidInput("画質の指定が不正です。")
		}
	}

	bitrate := int(req.AudioBitrate)
	if bitrate < 0 {
		return nil, apperror.InvalidInput("audioBitrate は正の値を指定してください。")
	}
	if bitrate == 0 {
		bitrate = ytdlp.DefaultAudioBitrate
	}

	credential := strings.TrimSpace(req.AuthBrowser)
	if credential == "" {
		credential = strings.TrimSpace(req.AuthBrowserAlt)
	}
	if credential == "" {
		credential = config.CredentialNone
	}

	id := uuid.NewString()
	createdAt := m.now().UTC()
	target, filename := m.store.Reserve(id, kind.Extension(), createdAt)
	job := &Job{
		ID:           id,
		SourceURL:    sourceURL,
		Kind:         kind,
		Quality:      quality,
		AudioBitrate: bitrate,
		Credential:   credential,
		TargetPath:   target,
		Filename:     filename,
		Watermark:    req.Watermark,
		CreatedAt:    createdAt,
		status:       StatusQueued,
	}
	if !m.table.Insert(job) {
		return nil, apperror.New(apperror.CodeInternal, "ジョブを登録できませんでした。", errors.New("duplicate job id"))
	}

	m.logf("job created job=%s kind=%s quality=%q watermark=%t", job.ID, job.Kind, job.Quality, job.Watermark.Requested)
	m.publishUpdate(job)
	return job, nil
}

// Get はジョブを取得します。
func (m *Manager) Get(id string) (*Job, error) {
	job, ok := m.table.Get(id)
	if !ok {
		return nil, apperror.NotFound("ジョブが見つかりません。")
	}
	return job, nil
}

// List は全ジョブのスナップショットを返します。
func (m *Manager) List() []Snapshot {
	return m.table.List()
}

// Run はジョブのステージ1と必要ならステージ2を実行します。
// 失敗はイベントで通知し、戻り値はジョブが存在しない場合のみエラーになります。
func (m *Manager) Run(ctx context.Context, id string) error {
	job, err := m.Get(id)
	if err != nil {
		return err
	}
	m.supervise(ctx, job)
	return nil
}

// Cancel はジョブをキャンセルします。終了済みのジョブに対しては何もしません。
func (m *Manager) Cancel(id string) (Snapshot, error) {
	job, err := m.Get(id)
	if err != nil {
		return Snapshot{}, err
	}

	proc, changed := job.cancel()
	if !changed {
		return job.Snapshot(), nil
	}

	m.logf("job cancelled job=%s", job.ID)
	m.publishUpdate(job)
	if err := process.Kill(proc); err != nil {
		m.logf("failed to kill process tree job=%s: %v", job.ID, err)
	}

	// 子プロセスがファイルを閉じるのを待ってから削除する
	target := job.TargetPath
	time.AfterFunc(m.cancelGrace, func() {
		m.removeArtifacts(job.ID, target)
	})
	return job.Snapshot(), nil
}

// Fail は実行前に失敗したジョブ（投入失敗など）を失敗状態にします。
func (m *Manager) Fail(id, message string) {
	job, ok := m.table.Get(id)
	if !ok {
		return
	}
	m.failJob(job, message)
}

// Sweep は保持期間を過ぎたジョブを破棄します。
// 利用者によるキャンセルではないため、イベントは発行しません。
func (m *Manager) Sweep(now time.Time) int {
	expired := m.table.Expired(now)
	for _, job := range expired {
		if err := process.Kill(job.evict()); err != nil {
			m.logf("failed to kill process tree job=%s: %v", job.ID, err)
		}
		m.removeArtifacts(job.ID, job.TargetPath)
		m.removeWatermarkAsset(job)
	}
	if len(expired) > 0 {
		m.logf("evicted %d expired jobs (%d remaining)", len(expired), m.table.Len())
	}
	return len(expired)
}

// Retention はジョブの保持期間を返します。
func (m *Manager) Retention() time.Duration {
	return m.table.TTL()
}

// RunSweeper は ctx が終了するまで interval ごとに Sweep を実行します。
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}

func (m *Manager) removeArtifacts(jobID, target string) {
	removed, err := storage.RemoveArtifacts(target)
	if err != nil {
		m.logf("failed to remove artifacts job=%s: %v", jobID, err)
		return
	}
	if removed > 0 {
		m.logf("removed %d artifacts job=%s", removed, jobID)
	}
}

func (m *Manager) completeJob(job *Job) {
	if !job.transition(StatusCompleted, 100) {
		return
	}
	m.logf("job completed job=%s file=%s", job.ID, job.Filename)
	m.publishUpdate(job)
	m.publisher.Publish(events.Event{
		JobID:    job.ID,
		Type:     events.TypeComplete,
		Status:   string(StatusCompleted),
		Progress: 100,
		Filename: job.Filename,
	})
}

func (m *Manager) failJob(job *Job, message string) {
	if !job.fail(message) {
		return
	}
	m.logf("job failed job=%s: %s", job.ID, message)
	snap := job.Snapshot()
	m.publishUpdate(job)
	m.publisher.Publish(events.Event{
		JobID:    job.ID,
		Type:     events.TypeError,
		Status:   string(StatusFailed),
		Progress: snap.Progress,
		Message:  message,
	})
}

func (m *Manager) publishUpdate(job *Job) {
	snap := job.Snapshot()
	m.publisher.Publish(events.Event{
		JobID:    snap.JobID,
		Type:     events.TypeUpdate,
		Status:   string(snap.Status),
		Progress: snap.Progress,
	})
}

func (m *Manager) publishProgress(job *Job, status Status, progress float64) {
	m.publisher.Publish(events.Event{
		JobID:    job.ID,
		Type:     events.TypeProgress,
		Status:   string(status),
		Progress: progress,
	})
}

func (m *Manager) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}

func (m *Manager) diagf(format string, args ...any) {
	if m.diag != nil {
		m.diag.Printf(format, args...)
	}
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
