package platform

import (
	"context"
	"errors"
	"os/exec"
)

// unsupportedPlatform is returned on operating systems where no sandbox
// mechanism exists.
type unsupportedPlatform struct {
	name string
}

func (p *unsupportedPlatform) Name() string {
	if p.name != "" {
		return p.name
	}
	return "unsupported"
}

func (p *unsupportedPlatform) Available() bool { return false }

func (p *unsupportedPlatform) CheckDependencies() *DependencyCheck {
	return &DependencyCheck{
		Errors: []string{"no sandbox mechanism exists on this operating system"},
	}
}

func (p *unsupportedPlatform) WrapCommand(_ context.Context, _ *exec.Cmd, _ *WrapConfig) error {
	return errors.New("sandbox not supported on this operating system")
}

// NewUnsupportedPlatform returns a Platform that always reports as
// unavailable. Useful in tests and on hosts without sandbox support.
func NewUnsupportedPlatform(name string) Platform {
	return &unsupportedPlatform{name: name}
}
