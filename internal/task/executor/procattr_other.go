//go:build !unix

package executor

import "os/exec"

// configureProcess keeps exec's default Cancel (kill the direct child only).
func configureProcess(cmd *exec.Cmd) {}
