package docker

import (
	"os/exec"
)

// dockerBin is the docker CLI used for interactive sessions, which have no
// plain REST equivalent.
var dockerBin = "docker"

// ShellCmd builds an exec.Cmd that opens an interactive shell in a
// container:
//
//	docker exec -it <container> <shell>
//
// The caller attaches a terminal (a pty or the user's tty).
func ShellCmd(containerID, shell string) *exec.Cmd {
	if shell == "" {
		shell = "/bin/bash"
	}
	return exec.Command(dockerBin, ExecArgs(containerID, true, shell)...)
}

// ExecArgs returns the argv (without the binary) for docker exec.
func ExecArgs(containerID string, tty bool, command ...string) []string {
	args := []string{"exec"}
	if tty {
		args = append(args, "-it")
	}
	args = append(args, containerID)
	return append(args, command...)
}
