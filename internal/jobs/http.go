package jobs

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/media-forge/internal/apperror"
	"github.com/yourusername/media-forge/internal/storage"
)

// Service は HTTP ハンドラから使うジョブ操作です。
type Service interface {
	Create(req CreateRequest) (*Job, error)
	Get(id string) (*Job, error)
	List() []Snapshot
	Cancel(id string) (Snapshot, error)
	Fail(id, message string)
}

// CreateHandler はジョブを作成し、実行を手配します。
// 実行中の失敗はイベントで通知されるため、このレスポンスには含まれません。
func CreateHandler(svc Service, dispatcher Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    apperror.CodeInvalidInput,
				"message": "リクエストの形式が不正です。",
			})
			return
		}

		job, err := svc.Create(req)
		if err != nil {
			apperror.Respond(c, err)
			return
		}

		if err := dispatcher.Dispatch(c.Request.Context(), job.ID); err != nil {
			svc.Fail(job.ID, "Failed to schedule job")
			apperror.Respond(c, apperror.New(apperror.CodeInternal, "ジョブの投入に失敗しました。", err))
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"jobId":  job.ID,
			"status": job.Status(),
		})
	}
}

// ListHandler は全ジョブのスナップショットを返します。
// イベント購読前に作成されたジョブの状態を取得するために使います。
func ListHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"jobs": svc.List()})
	}
}

// StatusHandler は1件のジョブのスナップショットを返します。
func StatusHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := svc.Get(strings.TrimSpace(c.Param("id")))
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, job.Snapshot())
	}
}

// CancelHandler はジョブをキャンセルします。存在するジョブなら常に受理します。
func CancelHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := svc.Cancel(strings.TrimSpace(c.Param("id")))
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"jobId":  snap.JobID,
			"status": snap.Status,
		})
	}
}

// FileHandler はジョブの出力ファイルを返します。
// ジョブの状態は問わず、保存先にファイルがあれば返します。
func FileHandler(svc Service, store *storage.Local) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := svc.Get(strings.TrimSpace(c.Param("id")))
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		path, err := store.Path(job.Filename)
		if err != nil && !errors.Is(err, storage.ErrInvalidName) {
			apperror.Respond(c, err)
			return
		}
		if err != nil || !storage.Usable(path) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "FILE_NOT_FOUND",
				"message": "ファイルが見つかりませんでした。",
			})
			return
		}

		file, err := os.Open(path)
		if err != nil {
			apperror.Respond(c, fmt.Errorf("failed to open output: %w", err))
			return
		}
		defer file.Close()

		info, err := file.Stat()
		if err != nil {
			apperror.Respond(c, fmt.Errorf("failed to stat output: %w", err))
			return
		}

		contentType := fallbackContentType(job.Kind)
		if detected, err := mimetype.DetectFile(path); err == nil && !detected.Is("application/octet-stream") {
			contentType = detected.String()
		}

		encodedName := url.PathEscape(job.Filename)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", job.Filename, encodedName))
		c.Header("Cache-Control", "no-store")
		c.Header("X-Job-Id", job.ID)
		c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
	}
}

func fallbackContentType(kind Kind) string {
	if kind == KindAudio {
		return "audio/mpeg"
	}
	return "video/mp4"
}
