package cmd

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/docprovider/pkg/auth"
	"github.com/theapemachine/docprovider/pkg/config"
	"github.com/theapemachine/docprovider/pkg/documents"
	"github.com/theapemachine/docprovider/pkg/errors"
	"github.com/theapemachine/docprovider/pkg/metrics"
	"github.com/theapemachine/docprovider/pkg/mirror"
	"github.com/theapemachine/docprovider/pkg/notify"
	"github.com/theapemachine/docprovider/pkg/push"
)

/*
stack is everything a command needs around the provider. Which parts are
live depends on the config and on whether the command serves requests.
*/
type stack struct {
	provider *documents.Provider
	hub      *notify.Hub
	metrics  *metrics.Operations
	auth     *auth.Service
	mirror   *mirror.Dispatcher
	push     *push.Service
	cancel   context.CancelFunc
}

type stackOptions struct {
	// serving turns on token auth (when configured) and webhook delivery.
	serving bool
}

func newStack(ctx context.Context, cfg *config.Config, opts stackOptions) (*stack, error) {
	roots, err := cfg.DocumentRoots()
	if err != nil {
		return nil, err
	}

	st := &stack{
		hub:     notify.NewHub(),
		metrics: metrics.NewOperations(),
	}

	providerOpts := []documents.Option{
		documents.WithNotifier(st.hub),
		documents.WithMetrics(st.metrics),
	}

	if cfg.Index.Path != "" {
		providerOpts = append(providerOpts, documents.WithIndexFile(cfg.Index.Path))
	}

	if opts.serving && cfg.Auth.Enabled {
		st.auth = auth.NewService(cfg.Auth.SigningKey, cfg.Auth.RateLimit)
		providerOpts = append(providerOpts, documents.WithAuthorizer(auth.Authorized))
	}

	if cfg.Mirror.Enabled {
		hook, err := mirror.NewMinioHook(ctx, cfg.MinioConfig())
		if err != nil {
			return nil, err
		}

		retry := errors.DefaultRetryConfig()
		retry.MaxAttempts = cfg.Mirror.Attempts

		st.mirror = mirror.NewDispatcher(
			[]mirror.Hook{mirror.LogHook{}, hook},
			mirror.WithRetry(retry),
			mirror.WithMetrics(st.metrics),
		)
		providerOpts = append(providerOpts, documents.WithCloseHook(st.mirror))
	}

	if st.provider, err = documents.NewProvider(roots, providerOpts...); err != nil {
		return nil, err
	}

	if opts.serving && len(cfg.Push.Webhooks) > 0 {
		var runCtx context.Context
		runCtx, st.cancel = context.WithCancel(ctx)

		st.push = push.NewService(push.WithRetry(cfg.Push.Retries, 5*time.Second))
		for _, hook := range cfg.Push.Webhooks {
			st.push.SetConfig(hook)
		}

		go st.push.Run(runCtx, st.hub)
		log.Info("pushing changes", "webhooks", len(cfg.Push.Webhooks))
	}

	return st, nil
}

/*
Close drains the mirror queue and persists the index.
*/
func (st *stack) Close(ctx context.Context) error {
	if st.cancel != nil {
		st.cancel()
	}

	var errs []error

	if st.mirror != nil {
		errs = append(errs, st.mirror.Close(ctx))
	}

	errs = append(errs, st.provider.Close())

	return stderrors.Join(errs...)
}
