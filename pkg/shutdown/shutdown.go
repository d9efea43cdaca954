package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Manager coordinates graceful shutdown. Hooks run in reverse
// registration order so dependents stop before their dependencies.
type Manager struct {
	hooks   []func(context.Context) error
	mu      sync.Mutex
	timeout time.Duration
	done    chan struct{}
	once    sync.Once
}

// New creates a shutdown manager with the given overall timeout
func New(timeout time.Duration) *Manager {
	return &Manager{
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// Register adds a shutdown hook. Hooks run LIFO.
func (m *Manager) Register(fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Wait blocks until SIGTERM or SIGINT, then runs the hooks
func (m *Manager) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	fmt.Printf("\nReceived signal: %v\n", sig)

	m.once.Do(func() {
		close(m.done)
	})
	m.Shutdown()
}

// Done is closed when shutdown has been initiated
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Shutdown runs every registered hook in reverse order, bounded by the
// manager's timeout. Hook errors are reported but do not stop the rest.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	for i := len(m.hooks) - 1; i >= 0; i-- {
		if err := m.hooks[i](ctx); err != nil {
			fmt.Printf("Shutdown hook %d error: %v\n", i, err)
		}
	}
	fmt.Println("Graceful shutdown complete")
}

// StopHTTPServer wraps an http.Server shutdown as a hook
func StopHTTPServer(server interface{ Shutdown(context.Context) error }, name string) func(context.Context) error {
	return func(ctx context.Context) error {
		fmt.Printf("Stopping %s HTTP server...\n", name)
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop %s server: %w", name, err)
		}
		return nil
	}
}

// StopComponent wraps a Stop() lifecycle method as a hook
func StopComponent(stop func(), name string) func(context.Context) error {
	return func(ctx context.Context) error {
		fmt.Printf("Stopping %s...\n", name)
		stop()
		return nil
	}
}

// CloseResource wraps an io.Closer as a hook
func CloseResource(closer interface{ Close() error }, name string) func(context.Context) error {
	return func(ctx context.Context) error {
		fmt.Printf("Closing %s...\n", name)
		if err := closer.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", name, err)
		}
		return nil
	}
}
