package sprint

import "fmt"

// ConfigError reports a missing or invalid calendar setting. It is raised
// before any data is fetched.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid sprint configuration: %s: %s", e.Field, e.Reason)
}
