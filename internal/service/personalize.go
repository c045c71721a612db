// internal/service/personalize.go
package service

import (
	"strings"

	"github.com/wablast/wablast-backend/internal/model"
)

// Personalize merges a variation text with the recipient's fields and the
// campaign's fixed parameters. Substitution order is fixed: identity tokens,
// then recipient extras, then fixed params. Matching is exact `{{key}}`,
// case-sensitive. Tokens with no source key stay verbatim in the output;
// those are meant to be resolved upstream by the rewrite service.
func Personalize(text string, recipient *model.Recipient, fixed model.Params) string {
	result := text
	result = strings.ReplaceAll(result, "{{name}}", recipient.Name)
	result = strings.ReplaceAll(result, "{{phone}}", recipient.Phone)

	for _, p := range recipient.Extra {
		result = strings.ReplaceAll(result, "{{"+p.Name+"}}", p.Value.String())
	}
	for _, p := range fixed {
		result = strings.ReplaceAll(result, "{{"+p.Name+"}}", p.Value.String())
	}
	return result
}

const stopOptionLine = "Reply STOP to stop receiving these messages."

// WithStopOption appends the opt-out line for campaigns that enable it.
func WithStopOption(text string) string {
	return strings.TrimRight(text, "\n ") + "\n\n" + stopOptionLine
}
