// Package ytdlp は yt-dlp の起動引数の組み立てと出力の解析を提供します。
package ytdlp

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/yourusername/media-forge/internal/process"
)

// Client は yt-dlp バイナリの呼び出し方を保持します。
type Client struct {
	Binary         string
	FFmpegLocation string
	UserAgent      string
	PrimaryHosts   []string

	command process.CommandFunc
}

// NewClient は Client を作成します。
func NewClient(binary, ffmpegLocation, userAgent string, primaryHosts []string) *Client {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Client{
		Binary:         binary,
		FFmpegLocation: ffmpegLocation,
		UserAgent:      userAgent,
		PrimaryHosts:   primaryHosts,
		command:        exec.CommandContext,
	}
}

// WithCommand はコマンド生成関数を差し替えた Client を返します。
func (c *Client) WithCommand(fn process.CommandFunc) *Client {
	clone := *c
	clone.command = fn
	return &clone
}

// Command は args を渡した yt-dlp のコマンドを生成します。
func (c *Client) Command(ctx context.Context, args ...string) *exec.Cmd {
	fn := c.command
	if fn == nil {
		fn = exec.CommandContext
	}
	return fn(ctx, c.Binary, args...)
}

// Run は yt-dlp を実行し、標準出力を返します。
// 終了コードが 0 以外の場合は標準エラーの内容をエラーに含めます。
func (c *Client) Run(ctx context.Context, args []string) ([]byte, error) {
	cmd := c.Command(ctx, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("yt-dlp failed: %w", err)
		}
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, msg)
	}
	return stdout.Bytes(), nil
}

// IsPrimaryHost は rawURL が専用セレクタを使うホストかどうかを判定します。
func (c *Client) IsPrimaryHost(rawURL string) bool {
	for _, host := range c.PrimaryHosts {
		if host != "" && strings.Contains(rawURL, host) {
			return true
		}
	}
	return false
}
