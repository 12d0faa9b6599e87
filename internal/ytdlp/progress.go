package ytdlp

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

var progressPattern = regexp.MustCompile(`\[download\]\s+(\d+(?:\.\d+)?)%`)

// ParseProgress は "[download]  42.3% of ..." 形式の行から割合を取り出します。
func ParseProgress(line string) (float64, bool) {
	m := progressPattern.FindStringSubmatch(line)
	if len(m) != 2 {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if pct > 100 {
		pct = 100
	}
	return pct, true
}

// IsErrorLine は診断ログに残すべき行かどうかを判定します。
func IsErrorLine(line string) bool {
	return strings.Contains(line, "ERROR") || strings.Contains(strings.ToLower(line), "failed")
}

// ScanLines は '\n' と '\r' のどちらでも行を区切る bufio.SplitFunc です。
// 進捗表示は '\r' で同じ行を上書きすることがあるためです。
func ScanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
