package aop

import (
	"github.com/dangvanduc1999/doffy-aop/libs/core"
)

const (
	ConfigLightweightAsync = "aop.lightweightAsync"
	ConfigLogArguments     = "aop.logArguments"
)

// Options configures a Weaver. They are resolved once, at startup.
type Options struct {
	// SupportsLightweightAsync recognises <-chan error as a no-result
	// asynchronous result. Without it such methods are plain values.
	SupportsLightweightAsync bool `json:"lightweightAsync"`
	// LogArguments lets logging interceptors dump argument vectors
	LogArguments bool `json:"logArguments"`
	// Logger receives synthesis events
	Logger core.Logger `json:"-"`
}

// DefaultOptions enables the lightweight async form and logs nowhere
func DefaultOptions() *Options {
	return &Options{
		SupportsLightweightAsync: true,
		Logger:                   core.NopLogger(),
	}
}

// OptionsFromConfig reads the aop.* keys from cm
func OptionsFromConfig(cm core.ConfigManager, logger core.Logger) *Options {
	opts := DefaultOptions()
	if cm.Has(ConfigLightweightAsync) {
		opts.SupportsLightweightAsync = cm.GetBool(ConfigLightweightAsync)
	}
	opts.LogArguments = cm.GetBool(ConfigLogArguments)
	if logger != nil {
		opts.Logger = logger
	}
	return opts
}
