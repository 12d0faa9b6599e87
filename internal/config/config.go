// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CredentialNone は認証情報を使わずに取得を試みるコンテキストを表します。
const CredentialNone = "none"

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// 出力設定
	DownloadDir       string // 完成ファイルの保存先ディレクトリ
	DiagnosticLogPath string // サブプロセスのエラー行を追記する診断ログ

	// 外部ツール設定
	YtDlpPath      string // yt-dlp 実行ファイルのパス
	FFmpegPath     string // ffmpeg 実行ファイルのパス
	FFmpegLocation string // yt-dlp に渡す ffmpeg のディレクトリ（空なら指定しない）
	UserAgent      string // 取得時に付与する User-Agent

	// 抽出設定
	CredentialContexts []string // 試行する認証コンテキスト（先頭から順に試す）
	PrimaryHosts       []string // 専用フォーマットセレクタを使うホスト
	PlaylistMaxEntries int      // プレイリストで返す最大件数

	// ジョブ設定
	JobRetentionMinutes     int     // ジョブの保持期間（分）
	JobSweepIntervalMinutes int     // 期限切れジョブを掃除する間隔（分）
	CancelGraceMillis       int     // キャンセル後に部分ファイルを消すまでの猶予（ミリ秒）
	MaxParallelJobs         int     // 同時に実行するジョブ数
	WatermarkWidthRatio     float64 // 透かし画像の幅（動画幅に対する比率）

	// キュー/イベント設定
	QueueRedisURL  string // Asynq用Redis接続URL（空ならプロセス内ワーカー）
	EventsRedisURL string // イベント中継先Redis接続URL（空なら中継しない）
	EventsChannel  string // イベントを publish するチャンネル名
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "5001"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),

		// 出力設定
		DownloadDir:       getEnv("DOWNLOAD_DIR", "downloads"),
		DiagnosticLogPath: getEnv("DIAGNOSTIC_LOG_PATH", "server.log"),

		// 外部ツール設定
		YtDlpPath:      getEnv("YTDLP_PATH", "yt-dlp"),
		FFmpegPath:     getEnv("FFMPEG_PATH", "ffmpeg"),
		FFmpegLocation: getEnv("FFMPEG_LOCATION", ""),
		UserAgent: getEnv("USER_AGENT",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),

		// 抽出設定
		CredentialContexts: getEnvAsList("CREDENTIAL_CONTEXTS", []string{CredentialNone, "chrome", "edge", "firefox"}),
		PrimaryHosts:       getEnvAsList("PRIMARY_HOSTS", []string{"youtube.com", "youtu.be"}),
		PlaylistMaxEntries: getEnvAsInt("PLAYLIST_MAX_ENTRIES", 50),

		// ジョブ設定
		JobRetentionMinutes:     getEnvAsInt("JOB_RETENTION_MINUTES", 60),
		JobSweepIntervalMinutes: getEnvAsInt("JOB_SWEEP_INTERVAL_MINUTES", 5),
		CancelGraceMillis:       getEnvAsInt("CANCEL_GRACE_MILLIS", 1000),
		MaxParallelJobs:         getEnvAsInt("MAX_PARALLEL_JOBS", 4),
		WatermarkWidthRatio:     getEnvAsFloat("WATERMARK_WIDTH_RATIO", 0.15),

		// キュー/イベント設定
		QueueRedisURL:  getEnv("QUEUE_REDIS_URL", ""),
		EventsRedisURL: getEnv("EVENTS_REDIS_URL", ""),
		EventsChannel:  getEnv("EVENTS_CHANNEL", "media:job-events"),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DownloadDir) == "" {
		return fmt.Errorf("DOWNLOAD_DIR is required")
	}
	if c.JobRetentionMinutes <= 0 {
		return fmt.Errorf("JOB_RETENTION_MINUTES must be positive (got %d)", c.JobRetentionMinutes)
	}
	if c.JobSweepIntervalMinutes <= 0 {
		return fmt.Errorf("JOB_SWEEP_INTERVAL_MINUTES must be positive (got %d)", c.JobSweepIntervalMinutes)
	}
	if len(c.CredentialContexts) == 0 {
		return fmt.Errorf("CREDENTIAL_CONTEXTS must contain at least one entry")
	}
	if c.WatermarkWidthRatio <= 0 || c.WatermarkWidthRatio > 1 {
		return fmt.Errorf("WATERMARK_WIDTH_RATIO must be in (0, 1] (got %v)", c.WatermarkWidthRatio)
	}

	// 本番環境ではツールのパスを明示させる
	if c.GinMode == "release" {
		if c.YtDlpPath == "" {
			return fmt.Errorf("YTDLP_PATH is required in release mode")
		}
		if c.FFmpegPath == "" {
			return fmt.Errorf("FFMPEG_PATH is required in release mode")
		}
	}

	return nil
}

// Retention はジョブの保持期間を返します。
func (c *Config) Retention() time.Duration {
	return time.Duration(c.JobRetentionMinutes) * time.Minute
}

// SweepInterval は掃除間隔を返します。
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.JobSweepIntervalMinutes) * time.Minute
}

// CancelGrace はキャンセル後の削除猶予を返します。
func (c *Config) CancelGrace() time.Duration {
	if c.CancelGraceMillis < 0 {
		return 0
	}
	return time.Duration(c.CancelGraceMillis) * time.Millisecond
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します。
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList はカンマ区切りの環境変数をスライスとして取得します。
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
