package backend

import "llmd/pkg/types"

// Package-wide sampling defaults applied when a request leaves a field unset.
var defaultGenerateOptions = types.GenerateOptions{
	Temperature:       0.8,
	MaxTokens:         256,
	TopP:              0.95,
	TopK:              40,
	RepetitionPenalty: 1.1,
}

// mergeOptions overlays caller-supplied options onto defaults. Each field is
// independently defaultable: a zero value means "unset". Set values are taken
// verbatim, including out-of-range ones, which the backend may reject or
// clamp.
func mergeOptions(defaults, override types.GenerateOptions) types.GenerateOptions {
	out := defaults
	if override.Temperature != 0 {
		out.Temperature = override.Temperature
	}
	if override.MaxTokens != 0 {
		out.MaxTokens = override.MaxTokens
	}
	if override.TopP != 0 {
		out.TopP = override.TopP
	}
	if override.TopK != 0 {
		out.TopK = override.TopK
	}
	if override.RepetitionPenalty != 0 {
		out.RepetitionPenalty = override.RepetitionPenalty
	}
	return out
}
