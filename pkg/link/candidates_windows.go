package link

const (
	defaultPrefix = "COM"
	defaultFirst  = 1
)
