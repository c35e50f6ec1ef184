package link

import "strconv"

// Candidates is the guessed set of device paths tried during discovery:
// Prefix followed by every index in [First, First+Count).
type Candidates struct {
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	First  int    `mapstructure:"first" yaml:"first"`
	Count  int    `mapstructure:"count" yaml:"count"`
}

// DefaultCandidates returns the platform's USB serial device range.
func DefaultCandidates() Candidates {
	return Candidates{Prefix: defaultPrefix, First: defaultFirst, Count: 64}
}

// Names returns the candidate paths in the order they are tried.
func (c Candidates) Names() []string {
	if c.Count <= 0 {
		return nil
	}
	names := make([]string, 0, c.Count)
	for i := c.First; i < c.First+c.Count; i++ {
		names = append(names, c.Prefix+strconv.Itoa(i))
	}
	return names
}
