package documents

import (
	"github.com/spf13/afero"
	"github.com/theapemachine/docprovider/pkg/metrics"
	"github.com/theapemachine/docprovider/pkg/notify"
)

/*
Notifier receives namespace changes. *notify.Hub satisfies it.
*/
type Notifier interface {
	Publish(change notify.Change)
}

type Option func(*Provider)

// WithFilesystem replaces the backing filesystem (the OS by default).
func WithFilesystem(fs afero.Fs) Option {
	return func(p *Provider) { p.backing = fs }
}

// WithIndexFile persists the ID index at path on the backing filesystem.
func WithIndexFile(path string) Option {
	return func(p *Provider) { p.indexPath = path }
}

func WithAuthorizer(a Authorizer) Option {
	return func(p *Provider) { p.authorize = a }
}

func WithNotifier(n Notifier) Option {
	return func(p *Provider) { p.notifier = n }
}

func WithCloseHook(h CloseHook) Option {
	return func(p *Provider) { p.closeHooks = append(p.closeHooks, h) }
}

func WithMetrics(m *metrics.Operations) Option {
	return func(p *Provider) { p.metrics = m }
}

/*
WithFreeSpace overrides how free space is probed for roots without a
configured capacity. A nil function disables probing.
*/
func WithFreeSpace(fn func(path string) (int64, error)) Option {
	return func(p *Provider) {
		p.freeSpace = fn
		p.freeSpaceSet = true
	}
}
