package link

const (
	defaultPrefix = "/dev/ttyUSB"
	defaultFirst  = 0
)
