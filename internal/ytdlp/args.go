package ytdlp

import (
	"fmt"
	"strconv"
	"strings"
)

// 取得時の調整値
const (
	Retries         = "10"
	FragmentRetries = "10"
	BufferSize      = "16M"
	HTTPChunkSize   = "10M"
	Concurrency     = "16"

	VideoContainer = "mp4"
	AudioFormat    = "mp3"

	GenericVideoSelector = "bestvideo+bestaudio/best"
	AudioSelector        = "bestaudio/best"
	PrimarySortOrder     = "vcodec:h264,res,acodec:m4a"

	DefaultAudioBitrate = 192

	// QualityAudioOnly は音声のみを表す画質ラベルです。
	QualityAudioOnly = "Audio Only"
)

// credentialNone は認証情報を付与しないコンテキスト名です。
const credentialNone = "none"

// InfoArgs はメタデータ取得用の引数を返します。
// preferItem が true の場合はプレイリストを展開せず単一アイテムとして解決します。
func (c *Client) InfoArgs(url string, preferItem bool, credential string) []string {
	playlistFlag := "--flat-playlist"
	if preferItem {
		playlistFlag = "--no-playlist"
	}
	args := []string{
		url,
		"--dump-single-json",
		"--no-warnings",
		"--prefer-free-formats",
		playlistFlag,
	}
	args = append(args, c.headerArgs()...)
	args = append(args, cookieArgs(credential)...)
	return args
}

// DownloadOptions はステージ1の取得条件です。
type DownloadOptions struct {
	URL          string
	OutputPath   string
	Audio        bool
	Height       int // 0 の場合は上限なし
	AudioBitrate int // kbps
	Credential   string
}

// DownloadArgs はステージ1用の引数を返します。
func (c *Client) DownloadArgs(opts DownloadOptions) []string {
	if opts.Audio {
		return c.audioArgs(opts)
	}
	return c.videoArgs(opts)
}

func (c *Client) audioArgs(opts DownloadOptions) []string {
	bitrate := opts.AudioBitrate
	if bitrate <= 0 {
		bitrate = DefaultAudioBitrate
	}
	args := []string{
		opts.URL,
		"-o", opts.OutputPath,
		"-f", AudioSelector,
		"--extract-audio",
		"--audio-format", AudioFormat,
		"--postprocessor-args", fmt.Sprintf("ffmpeg:-b:a %dk", bitrate),
		"--no-playlist",
		"--newline",
	}
	args = append(args, tuningArgs()...)
	args = append(args, c.ffmpegArgs()...)
	args = append(args, c.headerArgs()...)
	args = append(args, cookieArgs(opts.Credential)...)
	return args
}

func (c *Client) videoArgs(opts DownloadOptions) []string {
	// 専用セレクタの構文は汎用エクストラクタでは不安定なため、その他のサイトは単純なセレクタにする
	if !c.IsPrimaryHost(opts.URL) {
		args := []string{
			opts.URL,
			"-o", opts.OutputPath,
			"-f", GenericVideoSelector,
			"--merge-output-format", VideoContainer,
			"--no-playlist",
			"--newline",
		}
		args = append(args, c.ffmpegArgs()...)
		args = append(args, cookieArgs(opts.Credential)...)
		return args
	}

	args := []string{
		opts.URL,
		"-o", opts.OutputPath,
		"-f", VideoSelector(opts.Height),
		"--merge-output-format", VideoContainer,
		"--no-playlist",
		"--newline",
		"-S", PrimarySortOrder,
	}
	args = append(args, tuningArgs()...)
	args = append(args, c.ffmpegArgs()...)
	args = append(args, c.headerArgs()...)
	args = append(args, cookieArgs(opts.Credential)...)
	return args
}

// VideoSelector は高さの上限付きフォーマットセレクタを返します。
func VideoSelector(height int) string {
	if height <= 0 {
		return GenericVideoSelector
	}
	return fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", height, height)
}

// ParseHeight は "720p" のような品質ラベルから高さを取り出します。
func ParseHeight(quality string) (int, bool) {
	q := strings.TrimSpace(strings.ToLower(quality))
	if !strings.HasSuffix(q, "p") {
		return 0, false
	}
	height, err := strconv.Atoi(strings.TrimSuffix(q, "p"))
	if err != nil || height <= 0 {
		return 0, false
	}
	return height, true
}

func tuningArgs() []string {
	return []string{
		"--retries", Retries,
		"--fragment-retries", FragmentRetries,
		"--buffer-size", BufferSize,
		"--http-chunk-size", HTTPChunkSize,
		"-N", Concurrency,
	}
}

func (c *Client) ffmpegArgs() []string {
	if c.FFmpegLocation == "" {
		return nil
	}
	return []string{"--ffmpeg-location", c.FFmpegLocation}
}

func (c *Client) headerArgs() []string {
	if c.UserAgent == "" {
		return nil
	}
	return []string{"--add-header", "User-Agent:" + c.UserAgent}
}

func cookieArgs(credential string) []string {
	if credential == "" || credential == credentialNone {
		return nil
	}
	return []string{"--cookies-from-browser", credential}
}
