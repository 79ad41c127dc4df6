//go:build !windows

package shell

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the spawned command in its own process group so
// killProcessGroup can terminate it and every child it forked in one
// signal, rather than leaving orphans behind when the direct child exits
// first.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends sig to the process group led by pid. A negative
// pid targets the whole group in the unix signal API.
func killProcessGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}

func defaultKillSignal() syscall.Signal { return syscall.SIGTERM }
func forceKillSignal() syscall.Signal   { return syscall.SIGKILL }
