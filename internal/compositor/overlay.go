// Package compositor は ffmpeg による透かし合成の引数を組み立てます。
package compositor

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/yourusername/media-forge/internal/process"
)

// エンコード設定
const (
	VideoCodec    = "libx264"
	VideoProfile  = "main"
	PixelFormat   = "yuv420p"
	AudioCodec    = "aac"
	AudioBitrate  = "128k"
	FastStartFlag = "+faststart"
	EncodePreset  = "ultrafast"
)

// Placement は透かしの配置を動画サイズに対する比率で表します。
// 解像度に依存しないため、どの画質でも同じ見た目になります。
type Placement struct {
	OffsetX    float64 // 左端からの距離（動画幅に対する比率）
	OffsetY    float64 // 上端からの距離（動画高さに対する比率）
	WidthRatio float64 // 透かし画像の幅（動画幅に対する比率）
}

// DefaultPlacement は左上付近に配置する既定値です。
var DefaultPlacement = Placement{
	OffsetX:    0.025,
	OffsetY:    0.04,
	WidthRatio: 0.15,
}

// Compositor は ffmpeg の呼び出し設定を保持します。
type Compositor struct {
	Binary    string
	Placement Placement

	command process.CommandFunc
}

// New は Compositor を作成します。widthRatio が 0 以下なら既定値を使います。
func New(binary string, widthRatio float64) *Compositor {
	if binary == "" {
		binary = "ffmpeg"
	}
	placement := DefaultPlacement
	if widthRatio > 0 {
		placement.WidthRatio = widthRatio
	}
	return &Compositor{Binary: binary, Placement: placement, command: exec.CommandContext}
}

// WithCommand はコマンド生成関数を差し替えた Compositor を返します。
func (c *Compositor) WithCommand(fn process.CommandFunc) *Compositor {
	clone := *c
	clone.command = fn
	return &clone
}

// Command は overlayPath を inputPath に重ねる ffmpeg コマンドを生成します。
func (c *Compositor) Command(ctx context.Context, inputPath, overlayPath, outputPath string) *exec.Cmd {
	fn := c.command
	if fn == nil {
		fn = exec.CommandContext
	}
	return fn(ctx, c.Binary, c.OverlayArgs(inputPath, overlayPath, outputPath)...)
}

// FilterGraph は透かしを縮小して重ねるフィルタ式を返します。
func (p Placement) FilterGraph() string {
	return fmt.Sprintf(
		"[1:v][0:v]scale2ref=w=main_w*%s:h=ow/a[wm][base];[base][wm]overlay=x=main_w*%s:y=main_h*%s",
		formatRatio(p.WidthRatio), formatRatio(p.OffsetX), formatRatio(p.OffsetY),
	)
}

// OverlayArgs は inputPath に overlayPath を重ねて outputPath に書き出す引数を返します。
func (c *Compositor) OverlayArgs(inputPath, overlayPath, outputPath string) []string {
	return []string{
		"-i", inputPath,
		"-i", overlayPath,
		"-filter_complex", c.Placement.FilterGraph(),
		"-c:v", VideoCodec,
		"-profile:v", VideoProfile,
		"-pix_fmt", PixelFormat,
		"-c:a", AudioCodec,
		"-b:a", AudioBitrate,
		"-movflags", FastStartFlag,
		"-preset", EncodePreset,
		"-y",
		outputPath,
	}
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
