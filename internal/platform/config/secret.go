package config

import "log/slog"

const redacted = "[REDACTED]"

// Secret is a credential that never prints its value.
type Secret string

// Reveal returns the raw value for the one place that needs it.
func (s Secret) Reveal() string {
	return string(s)
}

// Empty reports whether no value is configured.
func (s Secret) Empty() bool {
	return s == ""
}

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// LogValue keeps secrets out of structured logs.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

// MarshalText keeps secrets out of JSON/YAML dumps.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
