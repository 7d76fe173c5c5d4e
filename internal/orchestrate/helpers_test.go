package orchestrate

import "time"

const (
	timeout = time.Second
	tick    = time.Millisecond
)
