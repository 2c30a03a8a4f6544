package menu

import (
	"regexp"
	"strings"

	"github.com/ebosacco/ussd-gateway/pkg/domain"
)

var placeholder = regexp.MustCompile(`\$\{(\w+)\}`)

// Render produces the display text for a node against a session. Collected
// fields and customer identity interpolate into ${name} placeholders;
// unresolved placeholders stay verbatim so a template typo is visible in QA
// instead of rendering as an empty hole.
func Render(node *domain.Node, session *domain.Session) string {
	text := placeholder.ReplaceAllStringFunc(node.Text, func(match string) string {
		name := match[2 : len(match)-1]
		switch name {
		case "customerName":
			if session.CustomerName != "" {
				return session.CustomerName
			}
		case "msisdn":
			return session.Msisdn
		default:
			if v := session.Field(name); v != "" {
				return v
			}
		}
		return match
	})

	if session.Language != "" && session.Language != "en" {
		text = translate(text, session.Language)
	}
	return text
}

// translations is a small static table; anything beyond this belongs in a
// real localization pipeline.
var translations = map[string]map[string]string{
	"runyankore": {
		"Welcome to EBO SACCO":               "Tushangaire EBO SACCO",
		"Please enter your PIN to continue":  "Nyamwirra PIN yaawe okukomeza",
		"Withdraw":                           "Kuzana Sent",
		"Deposit":                            "Tweka Sent",
		"Payments":                           "Okasasira",
		"Internal Transfers":                 "Okuhinduranya Sent",
		"Settings":                           "Ebyokuhindura",
		"Exit":                               "Genda",
	},
}

func translate(text, language string) string {
	dict, ok := translations[language]
	if !ok {
		return text
	}
	for english, local := range dict {
		text = strings.ReplaceAll(text, english, local)
	}
	return text
}
