package jobs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/media-forge/internal/ytdlp"
)

// Status はジョブの実行状態を表します。
type Status string

const (
	StatusQueued              Status = "queued"
	StatusStarting            Status = "starting"
	StatusDownloading         Status = "downloading"
	StatusMerging             Status = "merging"
	StatusProcessingWatermark Status = "processing_watermark"
	StatusCompleted           Status = "completed"
	StatusFailed              Status = "failed"
	StatusCancelled           Status = "cancelled"
)

// Terminal は以後変化しない状態かどうかを返します。
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Kind は取得するメディアの種類です。
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// QualityAudioOnly は音声のみを選んだときの画質ラベルです。
const QualityAudioOnly = ytdlp.QualityAudioOnly

// Extension は出力ファイルの拡張子を返します。
func (k Kind) Extension() string {
	if k == KindAudio {
		return "mp3"
	}
	return "mp4"
}

// Snapshot はある時点のジョブ状態です。
type Snapshot struct {
	JobID     string    `json:"jobId"`
	SourceURL string    `json:"sourceUrl"`
	Kind      Kind      `json:"kind"`
	Quality   string    `json:"quality,omitempty"`
	Status    Status    `json:"status"`
	Progress  float64   `json:"progress"`
	Filename  string    `json:"filename,omitempty"`
	Error     string    `json:"error,omitempty"`
	Watermark bool      `json:"watermark"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CreateRequest はジョブ作成リクエストです。
type CreateRequest struct {
	URL          string           `json:"url"`
	Kind         Kind             `json:"kind"`
	Quality      string           `json:"quality"`
	AudioBitrate Bitrate          `json:"audioBitrate"`
	AuthBrowser  string           `json:"authBrowser"`
	Watermark    WatermarkRequest `json:"watermark"`

	// 抽出結果の auth_browser をそのまま送ってくるクライアント向け
	AuthBrowserAlt string `json:"auth_browser"`
}

// Bitrate は kbps 単位のビットレートです。数値と "192" / "192k" 形式の文字列を受け付けます。
type Bitrate int

func (b *Bitrate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = 0
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*b = Bitrate(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("audioBitrate must be a number or string")
	}
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "k")
	if s == "" {
		*b = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid audioBitrate %q", s)
	}
	*b = Bitrate(n)
	return nil
}
