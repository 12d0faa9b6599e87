package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/yourusername/media-forge/internal/apperror"
	"github.com/yourusername/media-forge/internal/process"
	"github.com/yourusername/media-forge/internal/storage"
)

// overlayStage は透かし合成中に作られたファイルを追跡します。
// release は結果に関係なく必ず呼ばれ、target に1つだけファイルが残る状態へ戻します。
type overlayStage struct {
	target    string
	raw       string
	composite string
	asset     string

	rawStaged bool
	promoted  bool
}

func newOverlayStage(target string) *overlayStage {
	dir := filepath.Dir(target)
	base := filepath.Base(target)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return &overlayStage{
		target:    target,
		raw:       filepath.Join(dir, stem+".raw"+ext),
		composite: filepath.Join(dir, stem+".wm"+ext),
	}
}

// stageRaw はステージ1の出力を退避します。
func (s *overlayStage) stageRaw() error {
	if err := os.Rename(s.target, s.raw); err != nil {
		return err
	}
	s.rawStaged = true
	return nil
}

// promote は合成結果を target に置きます。
func (s *overlayStage) promote() error {
	if err := os.Rename(s.composite, s.target); err != nil {
		return err
	}
	s.promoted = true
	return nil
}

// release は一時ファイルを片付けます。
// discard が true の場合（キャンセル時など）は退避した元ファイルも含めてすべて削除します。
func (s *overlayStage) release(discard bool) error {
	var errs []error
	if !s.promoted {
		errs = append(errs, storage.RemoveFile(s.composite))
	}
	errs = append(errs, storage.RemoveFile(s.asset))

	switch {
	case !s.rawStaged:
	case discard:
		errs = append(errs, storage.RemoveFile(s.raw), storage.RemoveFile(s.target))
	case s.promoted:
		errs = append(errs, storage.RemoveFile(s.raw))
	default:
		if _, err := os.Stat(s.target); errors.Is(err, os.ErrNotExist) {
			errs = append(errs, os.Rename(s.raw, s.target))
		} else {
			errs = append(errs, storage.RemoveFile(s.raw))
		}
	}
	return errors.Join(errs...)
}

// applyWatermark はステージ2を実行します。
// 失敗してもジョブは失敗にせず、透かしなしのファイルで完了させます。
func (m *Manager) applyWatermark(ctx context.Context, job *Job) {
	if !job.transition(StatusProcessingWatermark, 0) {
		return
	}
	m.publishUpdate(job)

	stage := newOverlayStage(job.TargetPath)
	defer func() {
		if err := stage.release(!job.active()); err != nil {
			m.logf("failed to release watermark artifacts job=%s: %v", job.ID, err)
		}
	}()

	data, ext, err := decodeWatermark(job.Watermark.Payload)
	if err != nil {
		if errors.Is(err, errNoWatermarkImage) {
			m.logf("watermark requested without image, keeping original job=%s", job.ID)
		} else {
			m.degraded(job, err)
		}
		return
	}

	if err := stage.stageRaw(); err != nil {
		m.degraded(job, err)
		return
	}
	stage.asset = m.watermarkAssetPath(job, ext)
	if err := os.WriteFile(stage.asset, data, 0o644); err != nil {
		m.degraded(job, err)
		return
	}

	if err := m.runCompositor(ctx, job, stage); err != nil {
		if job.active() {
			m.degraded(job, err)
		}
		return
	}
	if !job.active() {
		return
	}
	if !storage.Usable(stage.composite) {
		m.degraded(job, errors.New("compositor produced no output"))
		return
	}
	if err := stage.promote(); err != nil {
		m.degraded(job, err)
		return
	}
	m.logf("watermark applied job=%s", job.ID)
}

func (m *Manager) runCompositor(ctx context.Context, job *Job, stage *overlayStage) error {
	cmd := m.compositor.Command(ctx, stage.raw, stage.asset, stage.composite)
	process.Bind(cmd)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	if !job.attach(cmd.Process) {
		_ = process.Kill(cmd.Process)
		_ = cmd.Wait()
		return nil
	}

	m.scanDiagnostics(job.ID, "ffmpeg", stderr)
	err = cmd.Wait()
	job.detach()
	return err
}

func (m *Manager) degraded(job *Job, err error) {
	m.diagf("job=%s %s: %v", job.ID, apperror.CodeCompositingDegraded, err)
	m.logf("watermark skipped job=%s: %v", job.ID, err)
}

func (m *Manager) watermarkAssetPath(job *Job, ext string) string {
	return filepath.Join(filepath.Dir(job.TargetPath), watermarkStem(job.ID)+ext)
}

func (m *Manager) removeWatermarkAsset(job *Job) {
	if _, err := storage.RemoveStem(filepath.Dir(job.TargetPath), watermarkStem(job.ID)); err != nil {
		m.logf("failed to remove watermark asset job=%s: %v", job.ID, err)
	}
}

func watermarkStem(jobID string) string {
	return "watermark-" + jobID
}
