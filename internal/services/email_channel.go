package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
)

var notificationEmailTemplate = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
  <body>
    <h1>{{.Title}}</h1>
    <p>{{.Message}}</p>
    {{- if .ActionLink}}
    <p><a href="{{.ActionLink}}">Open in the app</a></p>
    {{- end}}
    <p>Thanks,<br/>The notification team</p>
  </body>
</html>
`))

type notificationEmailData struct {
	Title      string
	Message    string
	ActionLink string
}

// EmailChannel renders notification emails and hands them to a Mailer.
type EmailChannel struct {
	mailer  Mailer
	baseURL string
}

func NewEmailChannel(mailer Mailer, baseURL string) *EmailChannel {
	return &EmailChannel{mailer: mailer, baseURL: baseURL}
}

// SendNotification emails title and message to address. payload selects the
// action link, if any.
func (c *EmailChannel) SendNotification(ctx context.Context, to, title, message string, payload map[string]any) error {
	var body bytes.Buffer
	data := notificationEmailData{
		Title:      title,
		Message:    message,
		ActionLink: ActionLink(c.baseURL, payload),
	}
	if err := notificationEmailTemplate.Execute(&body, data); err != nil {
		return fmt.Errorf("render notification email: %w", err)
	}

	tag, _ := payload["eventType"].(string)
	return c.mailer.Send(ctx, EmailMessage{
		To:       to,
		Subject:  title,
		HTMLBody: body.String(),
		Tag:      tag,
	})
}
