package offload

import (
	"fmt"
	"time"

	"github.com/qrv0/spmv/internal/logging"
)

// TimingScope selects the interval reported as Result.Elapsed.
type TimingScope int

const (
	// ScopeFull spans every host-to-device copy, the dispatch and the readback.
	ScopeFull TimingScope = iota
	// ScopeKernel spans the dispatch only.
	ScopeKernel
)

func (s TimingScope) String() string {
	switch s {
	case ScopeFull:
		return "full"
	case ScopeKernel:
		return "kernel"
	default:
		return fmt.Sprintf("TimingScope(%d)", int(s))
	}
}

func ParseTimingScope(s string) (TimingScope, error) {
	switch s {
	case "", "full":
		return ScopeFull, nil
	case "kernel":
		return ScopeKernel, nil
	default:
		return 0, fmt.Errorf("unknown timing scope %q (want full or kernel)", s)
	}
}

type options struct {
	kernel string
	scope  TimingScope
	logger *logging.Logger
	now    func() time.Time
}

// Option configures an Orchestrator.
type Option func(*options)

// WithKernel sets the kernel name built on the device. Defaults to "csr".
func WithKernel(name string) Option {
	return func(o *options) { o.kernel = name }
}

func WithTimingScope(s TimingScope) Option {
	return func(o *options) { o.scope = s }
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = logging.Noop()
		}
		o.logger = l
	}
}

func withClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}
