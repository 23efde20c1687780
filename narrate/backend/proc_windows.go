//go:build windows

package backend

import (
	"fmt"
	"os/exec"

	"github.com/yamunaarun/narrato-audio-book/narrate"
)

func setProcAttr(cmd *exec.Cmd) {}

func terminateProcess(cmd *exec.Cmd) {
	_ = cmd.Process.Kill()
}

// Windows has no process suspension signal; SAPI playback cannot be
// paused mid-utterance from outside the process.
func suspendProcess(cmd *exec.Cmd) error {
	return fmt.Errorf("speech pause is not supported on windows: %w", narrate.ErrOperationNotAllowed)
}

func resumeProcess(cmd *exec.Cmd) error {
	return fmt.Errorf("speech resume is not supported on windows: %w", narrate.ErrOperationNotAllowed)
}
