//go:build windows

package process

import (
	"os"
	"os/exec"
	"strconv"
)

// Prepare は Windows では何もしません（taskkill /T で子孫ごと終了させるため）。
func Prepare(cmd *exec.Cmd) {}

func killTree(p *os.Process) error {
	kill := exec.Command("taskkill", "/pid", strconv.Itoa(p.Pid), "/f", "/t")
	if err := kill.Run(); err != nil {
		return p.Kill()
	}
	return nil
}
