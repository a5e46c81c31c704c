package inference

import "fmt"

// BuildHumorPrompt asks the model to adapt a joke for a target culture. Both
// values are embedded verbatim.
func BuildHumorPrompt(text, culture string) string {
	return fmt.Sprintf(
		"Translate or adapt the following joke or phrase into humor suitable for %s culture. "+
			"Maintain the spirit of the joke but make it funny and understandable to that culture.\n\n"+
			"Input: %s\n\nTranslated Humor:",
		culture, text,
	)
}
