package services

import (
	"fmt"
	"strings"
)

// TransformationMode selects how much of the reference photo may change.
type TransformationMode string

const (
	ModeFullTransformation TransformationMode = "full-transformation"
	ModeItemOnly           TransformationMode = "item-only"
)

// ParseTransformationMode defaults to ModeFullTransformation for an empty
// or unknown value.
func ParseTransformationMode(s string) TransformationMode {
	if TransformationMode(strings.TrimSpace(s)) == ModeItemOnly {
		return ModeItemOnly
	}
	return ModeFullTransformation
}

const (
	itemOnlyTemplate = "Create a highly realistic, photographic image. Keep the exact same person, pose, and photo composition. " +
		"Only change the clothing/outfit to '%s' style. Maintain facial features, body position, and background exactly as they are. " +
		"Use natural lighting, realistic skin texture, and professional photography quality. " +
		"Ensure the clothing looks authentic and properly fitted to the person's body."

	fullTransformationTemplate = "Create a highly realistic, professional photograph of this person in a '%s' theme. " +
		"Transform the entire scene with an appropriate background, natural pose, and authentic outfit that reflects '%s' style. " +
		"Use photographic quality with natural lighting, realistic skin texture, proper shadows, and lifelike details. " +
		"Ensure the image looks like it was taken with a professional camera, not AI-generated."
)

// BuildPrompt turns the user's free text into the instruction sent to the
// generator. The style is pulled out of phrasings like "in the style of X"
// or "only change to X"; otherwise the whole prompt is the style.
func BuildPrompt(userPrompt string, mode TransformationMode) string {
	itemOnly := mode == ModeItemOnly || strings.Contains(userPrompt, "Same person, same pose")
	if itemOnly {
		style := extractStyle(userPrompt, "only change to", "style of")
		return fmt.Sprintf(itemOnlyTemplate, style)
	}
	style := extractStyle(userPrompt, "style of")
	return fmt.Sprintf(fullTransformationTemplate, style, style)
}

// extractStyle returns the text after the first marker present in prompt.
func extractStyle(prompt string, markers ...string) string {
	for _, marker := range markers {
		if _, after, found := strings.Cut(prompt, marker); found {
			return strings.Trim(after, " .")
		}
	}
	return strings.Trim(prompt, " .")
}
