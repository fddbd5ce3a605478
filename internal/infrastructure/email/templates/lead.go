// Package templates provides email template rendering
package templates

import (
	"bytes"
	"html/template"
	"log"
)

// LeadNotificationProps carries the data for the internal lead alert email.
type LeadNotificationProps struct {
	LeadEmail    string
	FunnelName   string
	SessionToken string
	UTMSource    string
	UTMCampaign  string
}

var leadNotificationTemplate = template.Must(template.New("leadNotification").Parse(`
  <div style="font-family: Helvetica, sans-serif; font-size: 16px; color: #1f1235; max-width: 580px; margin: 0 auto; padding: 24px;">
    <h2 style="margin: 0 0 16px;">New waitlist lead</h2>
    <p style="margin: 0 0 8px;">A visitor just joined the waitlist.</p>
    <table role="presentation" cellpadding="6" cellspacing="0" style="border-collapse: collapse; margin: 16px 0;">
      <tr><td style="font-weight: bold;">Email</td><td>{{.LeadEmail}}</td></tr>
      <tr><td style="font-weight: bold;">Funnel</td><td>{{.FunnelName}}</td></tr>
      <tr><td style="font-weight: bold;">Session</td><td>{{.SessionToken}}</td></tr>
      {{if .UTMSource}}<tr><td style="font-weight: bold;">Source</td><td>{{.UTMSource}}</td></tr>{{end}}
      {{if .UTMCampaign}}<tr><td style="font-weight: bold;">Campaign</td><td>{{.UTMCampaign}}</td></tr>{{end}}
    </table>
    <p style="margin: 0; color: #6b6480; font-size: 13px;">Sent automatically by the Aurora funnel engine.</p>
  </div>`))

// GetLeadNotificationContent renders the internal lead alert email body.
func GetLeadNotificationContent(props LeadNotificationProps) string {
	var buf bytes.Buffer
	if err := leadNotificationTemplate.Execute(&buf, props); err != nil {
		log.Printf("Error executing lead notification template: %v", err)
		return ""
	}
	return buf.String()
}
