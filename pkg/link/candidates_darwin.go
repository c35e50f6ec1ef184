package link

const (
	defaultPrefix = "/dev/cu.usbserial-"
	defaultFirst  = 0
)
