// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

package mailer

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/nktu/gatekeeper/internal/models"
)

// Template names used as the metrics label for email outcomes.
const (
	TemplateHostRequest     = "host_request"
	TemplateVisitorApproved = "visitor_approved"
	TemplateVisitorRejected = "visitor_rejected"
)

// templateFuncs are available in all mail templates. orNA mirrors the
// "value or N/A" rendering the templates use for optional fields.
var templateFuncs = template.FuncMap{
	"orNA": func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	},
}

func newTemplate(name, body string) *template.Template {
	return template.Must(template.New(name).Funcs(templateFuncs).Parse(body))
}

var hostRequestTmpl = newTemplate(TemplateHostRequest, `
<div style="font-family:Arial;padding:20px;">
  <h2>New Visitor Request</h2>
  <p><strong>{{.Visitor.Name}}</strong> wants to meet you.</p>

  <h3>Visitor Details:</h3>
  <ul>
    <li><strong>Visitor ID:</strong> {{.Visitor.VisitorCode}}</li>
    <li><strong>Name:</strong> {{.Visitor.Name}}</li>
    <li><strong>Email:</strong> {{.Visitor.Email}}</li>
    <li><strong>Phone:</strong> {{.Visitor.Mobile}}</li>
    <li><strong>Organization:</strong> {{orNA .Visitor.CompanyName}}</li>
    <li><strong>Visitor Type:</strong> {{orNA .Visitor.PersonType}}</li>
    <li><strong>Purpose:</strong> {{orNA .Visitor.Purpose}}</li>
    <li><strong>To Meet:</strong> {{orNA .Visitor.ToMeet}}</li>
    <li><strong>Gate Number:</strong> {{.Visitor.GateNumber}}</li>
    <li><strong>Date:</strong> {{.Visitor.CreatedAt.Format "02 Jan 2006"}}</li>
    <li><strong>Time:</strong> {{.Visitor.CreatedAt.Format "15:04"}}</li>
  </ul>

  {{if .Visitor.PhotoURL}}<p><img src="{{.Visitor.PhotoURL}}" alt="Visitor Photo" width="150" style="border-radius:8px;border:1px solid #ccc;" /></p>{{end}}

  <p>Please take action:</p>
  <a href="{{.ApproveLink}}" style="padding:10px 15px;background:#28a745;color:#fff;text-decoration:none;margin-right:10px;border-radius:5px;">Approve</a>
  <a href="{{.RejectLink}}" style="padding:10px 15px;background:#dc3545;color:#fff;text-decoration:none;border-radius:5px;">Reject</a>
</div>
`)

var visitorApprovedTmpl = newTemplate(TemplateVisitorApproved, `
<div style="font-family:Arial;padding:20px;">
  <h2 style="color:#28a745;">Approval Confirmed</h2>
  <p>Hello <b>{{.Visitor.Name}}</b>,</p>
  <p>Your visitor request has been <b style="color:#28a745;">APPROVED</b>.</p>

  <h3>Visit Details:</h3>
  <ul>
    <li><strong>Visitor ID:</strong> {{.Visitor.VisitorCode}}</li>
    <li><strong>Name:</strong> {{.Visitor.Name}}</li>
    <li><strong>Email:</strong> {{.Visitor.Email}}</li>
    <li><strong>Phone:</strong> {{.Visitor.Mobile}}</li>
    <li><strong>Organization:</strong> {{orNA .Visitor.CompanyName}}</li>
    <li><strong>To Meet:</strong> {{orNA .Visitor.ToMeet}}</li>
    <li><strong>Gate Number:</strong> {{.Visitor.GateNumber}}</li>
  </ul>

  <p>Your visitor pass (PDF) is attached below. Please show it at the gate.</p>
</div>
`)

var visitorRejectedTmpl = newTemplate(TemplateVisitorRejected, `
<div style="font-family:Arial;padding:20px;">
  <h2 style="color:#dc3545;">Visit Request Declined</h2>
  <p>Hello <b>{{.Visitor.Name}}</b>,</p>
  <p>We regret to inform you that your visitor request has been declined.</p>
  <p>Please contact reception for more details.</p>
</div>
`)

// templateData is the rendering context shared by all templates.
type templateData struct {
	Visitor     *models.VisitorRecord
	ApproveLink string
	RejectLink  string
}

// renderTemplate executes a template into a string.
func renderTemplate(tmpl *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
