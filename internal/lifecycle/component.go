package lifecycle

import "context"

// Component is anything the manager can start and stop. Start must leave the
// component running or return an error; Stop must respect the context
// deadline and is called at most once after a successful Start.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// Name identifies the component in logs and error messages.
	Name() string
}
