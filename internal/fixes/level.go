package fixes

import "log/slog"

// levelTrace extends the standard slog levels with a Trace level one step
// below Debug, matching the Rust original's tracing::trace! granularity.
// Handlers configured at slog.LevelDebug or above simply never emit it.
const levelTrace = slog.Level(-8)
