// Package nodes provides the built-in node handlers: triggers, core
// actions, control-flow and AI integrations. Custom handlers implement
// registry.Handler and register alongside these.
package nodes

import (
	"net/http"
	"time"

	"github.com/lyzr/flowd/common/logger"
	"github.com/lyzr/flowd/condition"
	"github.com/lyzr/flowd/registry"
)

// Options configures the built-in handlers
type Options struct {
	Logger *logger.Logger

	// Conditions evaluates branch expressions; a fresh evaluator is
	// created when nil
	Conditions *condition.Evaluator

	// HTTPClient is used by the http_request handler
	HTTPClient *http.Client
}

// RegisterBuiltins registers every built-in handler
func RegisterBuiltins(r *registry.Registry, opts Options) {
	if opts.Conditions == nil {
		opts.Conditions = condition.NewEvaluator()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	r.MustRegister(&ManualTrigger{})
	r.MustRegister(&WebhookTrigger{})
	r.MustRegister(&ScheduleTrigger{})

	r.MustRegister(&Mock{})
	r.MustRegister(&HTTPRequest{Client: opts.HTTPClient})
	r.MustRegister(&Transform{})
	r.MustRegister(&SetVariable{})
	r.MustRegister(&Delay{})
	r.MustRegister(&Log{Logger: opts.Logger})

	r.MustRegister(&Condition{Evaluator: opts.Conditions})
	r.MustRegister(&Switch{})
	r.MustRegister(&Merge{})
	r.MustRegister(&Split{})
	r.MustRegister(&Retry{})

	r.MustRegister(&OpenAIChat{})
}
