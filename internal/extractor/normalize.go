package extractor

import (
	"fmt"
	"sort"

	"github.com/yourusername/media-forge/internal/ytdlp"
)

const codecNone = "none"

// normalize は yt-dlp の出力を利用者向けの結果に変換します。
func normalize(info *rawInfo, credential string, maxEntries int) *Result {
	if info.Type == "playlist" && info.Entries != nil {
		return normalizePlaylist(info, credential, maxEntries)
	}
	return &Result{
		ID:          info.ID,
		Title:       info.Title,
		WebpageURL:  info.WebpageURL,
		Extractor:   info.Extractor,
		AuthBrowser: credential,
		Thumbnail:   info.Thumbnail,
		Duration:    info.Duration,
		Description: info.Description,
		PreviewURL:  previewURL(info.Formats),
		Qualities:   qualities(info.Formats),
	}
}

func normalizePlaylist(info *rawInfo, credential string, maxEntries int) *Result {
	entries := info.Entries
	if maxEntries > 0 && len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		entry := Entry{
			ID:          e.ID,
			Title:       e.Title,
			Description: e.Description,
			Duration:    e.Duration,
			URL:         e.URL,
		}
		if entry.URL == "" {
			entry.URL = e.WebpageURL
		}
		if len(e.Thumbnails) > 0 {
			entry.Thumbnail = e.Thumbnails[0].URL
		}
		out = append(out, entry)
	}
	return &Result{
		IsPlaylist:  true,
		ID:          info.ID,
		Title:       info.Title,
		WebpageURL:  info.WebpageURL,
		Extractor:   info.Extractor,
		AuthBrowser: credential,
		Entries:     out,
	}
}

// qualities は高さごとに最もビットレートの高い映像フォーマットを残し、
// 最良の音声のみフォーマットを "Audio Only" として末尾に加えます。
func qualities(formats []rawFormat) []Quality {
	bestAudio := bestAudioOnly(formats)

	type candidate struct {
		quality Quality
		tbr     float64
	}
	byLabel := make(map[string]candidate)
	for _, f := range formats {
		if f.VCodec == codecNone || f.Height <= 0 {
			continue
		}
		size := sizeOf(f)
		// 音声を含まない映像は別途音声と結合されるため、その分を加える
		if f.ACodec == codecNone && bestAudio != nil {
			size += sizeOf(*bestAudio)
		}
		label := fmt.Sprintf("%dp", f.Height)
		if current, ok := byLabel[label]; ok && f.TBR <= current.tbr {
			continue
		}
		byLabel[label] = candidate{
			quality: Quality{
				Quality:  label,
				Height:   f.Height,
				Filesize: size,
				FormatID: f.FormatID,
			},
			tbr: f.TBR,
		}
	}

	out := make([]Quality, 0, len(byLabel)+1)
	for _, c := range byLabel {
		out = append(out, c.quality)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Height > out[j].Height
	})

	if bestAudio != nil {
		out = append(out, Quality{
			Quality:  ytdlp.QualityAudioOnly,
			Params:   "audio",
			Filesize: sizeOf(*bestAudio),
			FormatID: bestAudio.FormatID,
		})
	}
	return out
}

func bestAudioOnly(formats []rawFormat) *rawFormat {
	var best *rawFormat
	for i := range formats {
		f := &formats[i]
		if f.VCodec != codecNone || f.ACodec == codecNone || f.ACodec == "" {
			continue
		}
		if best == nil || f.TBR > best.TBR {
			best = f
		}
	}
	return best
}

func previewURL(formats []rawFormat) string {
	for _, f := range formats {
		if f.VCodec != codecNone && f.VCodec != "" && f.URL != "" {
			return f.URL
		}
	}
	return ""
}

func sizeOf(f rawFormat) int64 {
	if f.Filesize > 0 {
		return f.Filesize
	}
	return f.FilesizeApprox
}
