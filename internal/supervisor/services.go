package supervisor

import "context"

// FuncService adapts any blocking `func(context.Context) error` — the
// Asset Downloader's Run and Live Ingest's Router.Run both have this
// shape — into a suture.Service, the same wrap-a-blocking-call approach
// internal/supervisor/services/http_service.go uses for its own
// ListenAndServe-shaped dependency.
type FuncService struct {
	name string
	fn   func(context.Context) error
}

// NewFuncService names fn for suture's event log and wraps it as a
// suture.Service.
func NewFuncService(name string, fn func(context.Context) error) *FuncService {
	return &FuncService{name: name, fn: fn}
}

// String satisfies suture.Service's naming requirement.
func (s *FuncService) String() string { return s.name }

// Serve runs fn until it returns or ctx is canceled.
func (s *FuncService) Serve(ctx context.Context) error {
	return s.fn(ctx)
}
