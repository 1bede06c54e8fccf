package registry

import "fmt"

// Component kinds.
const (
	KindProvider   = "provider"
	KindTool       = "tool"
	KindStore      = "store"
	KindParameters = "parameters"
)

// ConfigurationError reports a component identifier that cannot be resolved
// or whose construction is rejected by configuration.
type ConfigurationError struct {
	Kind       string
	Identifier string
	Err        error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unable to resolve %s type %q: %v", e.Kind, e.Identifier, e.Err)
	}
	return fmt.Sprintf("unable to resolve %s type %q", e.Kind, e.Identifier)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
