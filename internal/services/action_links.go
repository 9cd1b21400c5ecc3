package services

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// actionLinks maps a notification's payload eventType to the page the
// recipient should open.
var actionLinks = map[string]string{
	"PARTNER_CREATED":   "/admin/partners/{{partnerId}}/validate",
	"PARTNER_VALIDATED": "/partner/dashboard",
	"ORDER_UPDATE":      "/orders/{{orderId}}",
}

// RenderTemplate replaces {{key}} placeholders. Unknown keys are left as is.
func RenderTemplate(template string, variables map[string]any) string {
	if template == "" || len(variables) == 0 {
		return template
	}

	return placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		submatch := placeholderRegex.FindStringSubmatch(match)
		if len(submatch) != 2 {
			return match
		}
		if value, ok := variables[submatch[1]]; ok && value != nil {
			return fmt.Sprint(value)
		}
		return match
	})
}

// ActionLink returns the link for a notification payload, prefixed with
// baseURL. Unknown event types and unresolved placeholders yield "".
func ActionLink(baseURL string, payload map[string]any) string {
	if payload == nil {
		return ""
	}
	eventType, _ := payload["eventType"].(string)
	tpl, ok := actionLinks[eventType]
	if !ok {
		return ""
	}
	path := RenderTemplate(tpl, payload)
	if placeholderRegex.MatchString(path) {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + path
}
