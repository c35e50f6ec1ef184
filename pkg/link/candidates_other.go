//go:build !linux && !darwin && !windows

package link

const (
	defaultPrefix = "/dev/ttyU"
	defaultFirst  = 0
)
