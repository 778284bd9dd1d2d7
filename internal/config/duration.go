package config

import (
	"strconv"
	"time"
)

// Duration is a time.Duration that can be unmarshaled from YAML.
// Accepts Go duration strings ("1s", "5m") or a plain integer of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	// A bare YAML integer decodes into a string as well, so both forms
	// arrive here as one scalar.
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	if n, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
