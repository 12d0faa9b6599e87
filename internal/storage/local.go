// Package storage はダウンロード先ディレクトリ上のファイル配置と後片付けを扱います。
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidName はディレクトリ外を指すファイル名が渡された場合のエラーです。
var ErrInvalidName = errors.New("invalid file name")

// Local はローカルファイルシステム上のダウンロード先です。
type Local struct {
	root string
}

// NewLocal は root を作成し、絶対パスで保持した Local を返します。
func NewLocal(root string) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Local{root: abs}, nil
}

// Root は保存先ディレクトリの絶対パスを返します。
func (l *Local) Root() string {
	return l.root
}

// Reserve はジョブ専用の出力パスを決めます。
// ファイル名にジョブIDを含めるため、他のジョブの出力と衝突しません。
func (l *Local) Reserve(jobID, ext string, now time.Time) (path, filename string) {
	filename = fmt.Sprintf("download-%s-%d.%s", jobID, now.UnixMilli(), strings.TrimPrefix(ext, "."))
	return filepath.Join(l.root, filename), filename
}

// Path は保存先ディレクトリ直下の name の絶対パスを返します。
func (l *Local) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", ErrInvalidName
	}
	return filepath.Join(l.root, name), nil
}

// Usable は path に空でない通常ファイルが存在するかどうかを返します。
func Usable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// RemoveArtifacts は target と、同じ stem を持つ中間ファイル（.part など）を削除します。
// 削除できたファイル数を返します。存在しないファイルは無視します。
func RemoveArtifacts(target string) (int, error) {
	base := filepath.Base(target)
	return removeMatching(filepath.Dir(target), func(name string) bool {
		return name == base || strings.HasPrefix(name, stemOf(base)+".")
	})
}

// RemoveStem は dir 直下の "<stem>.<拡張子>" 形式のファイルをすべて削除します。
func RemoveStem(dir, stem string) (int, error) {
	return removeMatching(dir, func(name string) bool {
		return strings.HasPrefix(name, stem+".")
	})
}

func removeMatching(dir string, match func(name string) bool) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !match(entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func stemOf(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// RemoveFile は path を削除します。存在しない場合はエラーにしません。
func RemoveFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
