// Package extractor は yt-dlp からメタデータを取得し、選択可能な画質一覧に整えます。
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/yourusername/media-forge/internal/apperror"
	"github.com/yourusername/media-forge/internal/config"
)

// Runner は yt-dlp の引数の組み立てと実行を行います。*ytdlp.Client が実装します。
type Runner interface {
	InfoArgs(url string, preferItem bool, credential string) []string
	Run(ctx context.Context, args []string) ([]byte, error)
}

// Gateway は認証コンテキストを順に試してメタデータを取得します。
type Gateway struct {
	runner     Runner
	contexts   []string
	maxEntries int
	logger     *log.Logger
}

// NewGateway は Gateway を作成します。contexts が空なら認証なしのみを試します。
func NewGateway(runner Runner, contexts []string, maxEntries int, logger *log.Logger) *Gateway {
	if len(contexts) == 0 {
		contexts = []string{config.CredentialNone}
	}
	return &Gateway{
		runner:     runner,
		contexts:   contexts,
		maxEntries: maxEntries,
		logger:     logger,
	}
}

// Extract は rawURL のメタデータを取得します。
// 最初に成功した認証コンテキストを結果に記録し、すべて失敗した場合は最後の原因を返します。
func (g *Gateway) Extract(ctx context.Context, rawURL string) (*Result, error) {
	rawURL = strings.TrimSpace(rawURL)
	parsed, err := parseSourceURL(rawURL)
	if err != nil {
		return nil, err
	}
	preferItem := hasItemAndCollection(parsed)

	var lastErr error
	for _, credential := range g.contexts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := g.fetch(ctx, rawURL, preferItem, credential)
		if err != nil {
			g.logf("metadata extraction failed with %s: %v", credential, err)
			lastErr = err
			continue
		}
		return normalize(info, credential, g.maxEntries), nil
	}
	return nil, apperror.New(apperror.CodeExtractionFailed, "動画情報の取得に失敗しました。", lastErr)
}

func (g *Gateway) fetch(ctx context.Context, rawURL string, preferItem bool, credential string) (*rawInfo, error) {
	out, err := g.runner.Run(ctx, g.runner.InfoArgs(rawURL, preferItem, credential))
	if err != nil {
		return nil, err
	}
	var info rawInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &info, nil
}

func (g *Gateway) logf(format string, args ...any) {
	if g.logger != nil {
		g.logger.Printf(format, args...)
	}
}

func parseSourceURL(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, apperror.InvalidInput("URLを指定してください。")
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, apperror.InvalidInput("URLが不正です。http または https のURLを指定してください。")
	}
	return u, nil
}

// hasItemAndCollection は URL が個別アイテムとコレクションの両方を指しているかを判定します。
// 例: https://www.youtube.com/watch?v=xxx&list=yyy
func hasItemAndCollection(u *url.URL) bool {
	q := u.Query()
	if q.Get("list") == "" {
		return false
	}
	return q.Get("v") != "" || strings.EqualFold(u.Hostname(), "youtu.be")
}
