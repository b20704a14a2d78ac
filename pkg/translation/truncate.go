package translation

import "ai-voicechat-be/pkg/utils"

// Truncate fits text under the provider ceiling, cutting at a sentence end
// or word boundary when there is one.
func Truncate(text string, ceiling int) string {
	return utils.TruncateAtBoundary(text, ceiling)
}
