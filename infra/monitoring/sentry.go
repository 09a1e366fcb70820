// Package monitoring reports dispatch failures to Sentry.
package monitoring

import (
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/courierdispatch/config"
	coremon "github.com/kilianp07/courierdispatch/core/monitoring"
	"github.com/kilianp07/courierdispatch/core/model"
)

// NewSentryMonitor initializes Sentry and returns a Monitor. An empty DSN
// yields a NopMonitor.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	opts := sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       cfg.SampleRate,
		TracesSampleRate: cfg.TracesSampleRate,
		ServerName:       "courierdispatch",
	}
	if !cfg.ReportInvalidRequests {
		opts.BeforeSend = dropInvalidRequests
	}
	if err := sentry.Init(opts); err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}
	return &sentryMonitor{}, nil
}

// dropInvalidRequests discards events caused by caller input, which are
// answered with an error and are not service faults.
func dropInvalidRequests(ev *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if hint != nil && errors.Is(hint.OriginalException, model.ErrInvalidRequest) {
		return nil
	}
	return ev
}

type sentryMonitor struct{}

// CaptureException reports err. The module tag groups events per
// component; order and rider ids become searchable tags.
func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		if module := tags["module"]; module != "" {
			scope.SetFingerprint([]string{"{{ default }}", module})
		}
		if order := tags["order_id"]; order != "" {
			scope.SetContext("order", sentry.Context{"id": order})
		}
		sentry.CaptureException(err)
	})
}

func (s *sentryMonitor) CapturePanic(v any) {
	sentry.CurrentHub().Recover(v)
}

func (s *sentryMonitor) Flush(timeout time.Duration) { sentry.Flush(timeout) }
