package jobs

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/yourusername/media-forge/internal/process"
	"github.com/yourusername/media-forge/internal/storage"
	"github.com/yourusername/media-forge/internal/ytdlp"
)

const (
	scanBufferSize    = 64 * 1024
	maxScanTokenSize  = 1024 * 1024
	msgOutputNotFound = "Download finished but the output file was not found"
)

// supervise はステージ1を実行し、終了コードと出力ファイルを突き合わせて結果を決めます。
func (m *Manager) supervise(ctx context.Context, job *Job) {
	if !job.transition(StatusStarting, 0) {
		return
	}
	m.publishUpdate(job)

	cmd := m.ytdlp.Command(ctx, m.ytdlp.DownloadArgs(job.downloadOptions())...)
	process.Bind(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		m.failJob(job, fmt.Sprintf("Failed to start downloader: %v", err))
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		m.failJob(job, fmt.Sprintf("Failed to start downloader: %v", err))
		return
	}
	if err := cmd.Start(); err != nil {
		m.failJob(job, fmt.Sprintf("Failed to start downloader: %v", err))
		return
	}
	if !job.attach(cmd.Process) {
		// 起動直後にキャンセルまたは掃除された
		_ = process.Kill(cmd.Process)
		_ = cmd.Wait()
		return
	}
	m.logf("downloader started job=%s pid=%d", job.ID, cmd.Process.Pid)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.scanDiagnostics(job.ID, "stderr", stderr)
	}()
	m.scanProgress(job, stdout)
	wg.Wait()

	waitErr := cmd.Wait()
	job.detach()

	if !m.reconcile(job, waitErr) {
		return
	}
	if job.Watermark.Requested && job.Kind == KindVideo {
		m.applyWatermark(ctx, job)
	}
	m.completeJob(job)
}

// reconcile はステージ1の結果を判定します。続行してよい場合に true を返します。
// 終了コードが 0 以外でも、空でない出力ファイルがあれば成功として扱います。
func (m *Manager) reconcile(job *Job, waitErr error) bool {
	if !job.active() {
		return false
	}
	usable := storage.Usable(job.TargetPath)
	switch {
	case waitErr == nil && usable:
		return true
	case usable:
		m.logf("downloader exited with code %d but output exists, treating as completed job=%s",
			process.ExitCode(waitErr), job.ID)
		return true
	case waitErr == nil:
		m.failJob(job, msgOutputNotFound)
		return false
	default:
		m.failJob(job, fmt.Sprintf("Process exited with code %d", process.ExitCode(waitErr)))
		return false
	}
}

// scanProgress はステージ1の標準出力を読み、進捗をイベントとして発行します。
// ジョブごとにこのゴルーチンだけが標準出力を読みます。
func (m *Manager) scanProgress(job *Job, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, scanBufferSize), maxScanTokenSize)
	scanner.Split(ytdlp.ScanLines)
	for scanner.Scan() {
		line := scanner.Text()
		if pct, ok := ytdlp.ParseProgress(line); ok {
			if status, progress, changed := job.recordProgress(pct); changed {
				m.publishProgress(job, status, progress)
			}
			continue
		}
		if ytdlp.IsErrorLine(line) {
			m.diagf("job=%s stdout: %s", job.ID, line)
		}
	}
	if err := scanner.Err(); err != nil {
		m.logf("failed to read downloader output job=%s: %v", job.ID, err)
		// 子プロセスが書き込みで詰まらないように残りを読み捨てる
		_, _ = io.Copy(io.Discard, r)
	}
}

// scanDiagnostics はエラーを示す行だけを診断ログに残します。
func (m *Manager) scanDiagnostics(jobID, stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, scanBufferSize), maxScanTokenSize)
	scanner.Split(ytdlp.ScanLines)
	for scanner.Scan() {
		if line := scanner.Text(); ytdlp.IsErrorLine(line) {
			m.diagf("job=%s %s: %s", jobID, stream, line)
		}
	}
	if err := scanner.Err(); err != nil {
		_, _ = io.Copy(io.Discard, r)
	}
}
