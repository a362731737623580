package docker

import (
	"errors"
	"fmt"
	"net/http"
)

// DockerError represents an error response from the Engine API.
type DockerError struct {
	StatusCode int
	Message    string
}

func (e *DockerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("docker API %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("docker API %d", e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsConflict reports whether err is a 409 from the daemon (for example
// killing a container that is not running).
func IsConflict(err error) bool {
	return statusOf(err) == http.StatusConflict
}

func statusOf(err error) int {
	var de *DockerError
	if errors.As(err, &de) {
		return de.StatusCode
	}
	return 0
}
