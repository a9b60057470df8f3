package stats

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// EstimateTokensCl100k counts text's tokens under the cl100k_base encoding,
// used as a fallback prompt-token estimate when a backend response omits
// its usage block entirely.
//
// Grounded on the countInputTokensCl100k helper pattern
// (tiktoken.GetEncoding("cl100k_base")).
func EstimateTokensCl100k(text string, logger *slog.Logger) int {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		if logger != nil {
			logger.Error("failed to load tiktoken encoding", "error", err)
		}
		return 0
	}
	return len(encoding.Encode(text, nil, nil))
}
