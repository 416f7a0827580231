// Package shutdown runs cleanup hooks when a long-running command is
// interrupted.
//
// Usage:
//
//	h := shutdown.NewHandler(5 * time.Second)
//	h.OnShutdown(func(ctx context.Context) error { return watcher.Stop() })
//	err := h.Wait(ctx) // returns after SIGINT/SIGTERM or ctx end
package shutdown
