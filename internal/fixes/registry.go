package fixes

import (
	"context"
	"log/slog"
)

// Registry holds the ordered collection of fixers and their per-fixer
// enable bits. Once built at startup it is read-only except for those bits,
// matching the concurrency model: many goroutines call Apply* concurrently,
// none of them mutate fixer state through the registry.
type Registry struct {
	fixerList []Fixer
	enabled   map[string]bool
	logger    *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		enabled: make(map[string]bool),
		logger:  logger,
	}
}

// NewDefaultRegistry builds the registry with the three shipped fixers in
// the order the pipeline requires: null-index first (cheap, nearly always
// applicable), then malformed-arguments (the more specific corruption
// pattern), then bad-filepath last.
func NewDefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(NewNullIndexFixer(true))
	r.Register(NewMalformedArgumentsFixer(logger))
	r.Register(NewBadFilepathFixer(true))
	return r
}

func (r *Registry) Register(f Fixer) {
	r.fixerList = append(r.fixerList, f)
	r.enabled[f.Name()] = true
}

func (r *Registry) SetEnabled(name string, enabled bool) {
	if _, ok := r.enabled[name]; ok {
		r.enabled[name] = enabled
	}
}

func (r *Registry) IsEnabled(name string) bool {
	return r.enabled[name]
}

func (r *Registry) ListFixers() []Fixer {
	return r.fixerList
}

func (r *Registry) GetFixer(name string) Fixer {
	for _, f := range r.fixerList {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// FixModuleConfig is the per-fixer configuration entry under
// fixes.modules.<name> in the application config document.
type FixModuleConfig struct {
	Enabled bool
	Options map[string]any
}

// Configure applies per-fixer enable bits and fixer-specific options from
// the loaded configuration. Concrete fixers that accept options implement
// ConfigurableFixer; reaching them is a type assertion against that closed
// interface, never reflection.
func (r *Registry) Configure(modules map[string]FixModuleConfig) {
	for name, cfg := range modules {
		fixer := r.GetFixer(name)
		if fixer == nil {
			continue
		}
		r.enabled[name] = cfg.Enabled
		if configurable, ok := fixer.(ConfigurableFixer); ok {
			configurable.Configure(cfg.Options)
		}
	}
}

// ApplyFixes runs every enabled, applicable fixer over response in
// registration order, threading each fixer's output into the next.
func (r *Registry) ApplyFixes(response map[string]any) map[string]any {
	result := response
	for _, f := range r.fixerList {
		if !r.IsEnabled(f.Name()) || !f.Applies(result, nil) {
			r.logNotApplicable(f)
			continue
		}
		newResult, action := f.Apply(result, nil)
		r.logFixAction(f.Name(), action, f.LogLevel())
		result = newResult
	}
	return result
}

// ApplyFixesWithContext is ApplyFixes but threads request context through to
// fixers (required by the malformed-arguments fixer's schema lookup).
func (r *Registry) ApplyFixesWithContext(response, request map[string]any) map[string]any {
	result := response
	for _, f := range r.fixerList {
		if !r.IsEnabled(f.Name()) || !f.Applies(result, request) {
			r.logNotApplicable(f)
			continue
		}
		newResult, action := f.Apply(result, request)
		r.logFixAction(f.Name(), action, f.LogLevel())
		result = newResult
	}
	return result
}

// ApplyFixesStreamWithAccumulation runs every enabled StreamFixer over a
// single SSE delta chunk on the fallback streaming path, threading the
// request-local accumulator through.
func (r *Registry) ApplyFixesStreamWithAccumulation(chunk, request map[string]any, acc *Accumulator) map[string]any {
	result := chunk
	for _, f := range r.fixerList {
		if !r.IsEnabled(f.Name()) {
			continue
		}
		sf, ok := f.(StreamFixer)
		if !ok {
			continue
		}
		newResult, action := sf.ApplyStream(result, request, acc)
		r.logFixAction(f.Name(), action, f.LogLevel())
		result = newResult
	}
	return result
}

func (r *Registry) logNotApplicable(f Fixer) {
	r.logger.Log(context.Background(), levelTrace, "fix did not apply", "fix_name", f.Name())
}

// logFixAction is the one centralized place fix outcomes are logged.
// Fixers themselves never log their own success/failure — only intra-attempt
// diagnostics — so duplicate records cannot happen.
func (r *Registry) logFixAction(fixName string, action FixAction, level FixLogLevel) {
	switch action.Kind {
	case NotApplicable:
		r.logger.Log(context.Background(), levelTrace, "fix did not apply", "fix_name", fixName)

	case Fixed:
		switch level {
		case LogTrace:
			r.logger.Log(context.Background(), levelTrace, "detected and fixed malformed content",
				"fix_name", fixName, "original", action.OriginalSnippet, "fixed", action.FixedSnippet)
		case LogDebug:
			r.logger.Debug("detected malformed content (fixed)", "fix_name", fixName, "original", action.OriginalSnippet)
			r.logger.Log(context.Background(), levelTrace, "successfully fixed malformed content",
				"fix_name", fixName, "original", action.OriginalSnippet, "fixed", action.FixedSnippet)
		case LogInfo:
			r.logger.Warn("detected malformed content", "fix_name", fixName, "original", action.OriginalSnippet)
			r.logger.Info("successfully fixed malformed content",
				"fix_name", fixName, "original", action.OriginalSnippet, "fixed", action.FixedSnippet)
		case LogWarn:
			r.logger.Warn("detected malformed content", "fix_name", fixName, "original", action.OriginalSnippet)
			r.logger.Warn("successfully fixed malformed content",
				"fix_name", fixName, "original", action.OriginalSnippet, "fixed", action.FixedSnippet)
		}

	case Failed:
		// Failures always log at warn/error regardless of the fixer's
		// configured log level.
		r.logger.Warn("detected malformed content", "fix_name", fixName, "original", action.OriginalSnippet)
		r.logger.Error("failed to fix malformed content",
			"fix_name", fixName, "original", action.OriginalSnippet, "attempted", action.AttemptedFix)
	}
}
