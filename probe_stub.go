//go:build !unix

package workerctl

import "fmt"

// processAlive is only supported on Unix
func processAlive(pid int) (bool, error) {
	return false, fmt.Errorf("checking pid %d: only supported on unix", pid)
}
