// Package process は子プロセスをプロセスツリー単位で終了できるように起動するための補助関数を提供します。
package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
)

// CommandFunc は実行コマンドを生成します。テストでは差し替えられます。
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Bind は cmd を独立したプロセスグループで起動するよう設定し、
// コンテキスト終了時にはツリーごと終了させます。Start 前に呼び出してください。
func Bind(cmd *exec.Cmd) {
	Prepare(cmd)
	cmd.Cancel = func() error {
		return Kill(cmd.Process)
	}
}

// ExitCode は Wait が返したエラーから終了コードを取り出します。
// シグナルで終了した場合や起動に失敗した場合は -1 を返します。
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Kill は p が nil でなければプロセスツリーごと終了させます。
func Kill(p *os.Process) error {
	if p == nil {
		return nil
	}
	return killTree(p)
}
