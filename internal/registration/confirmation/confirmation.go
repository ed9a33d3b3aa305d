// Package confirmation renders the registration confirmation email.
//
// Two layouts exist because the public landing page and the GitHub Pages form
// historically sent different bodies. Both name the attendee, the workshop
// topic, the venue and the date. User input is HTML-escaped.
package confirmation

import (
	"bytes"
	"fmt"
	"html/template"

	"weict/internal/registration/models"
)

// Event describes the workshop the confirmation refers to.
type Event struct {
	Name  string
	Venue string
	Date  string
}

// WEICT2026 is the workshop this service registers attendees for.
var WEICT2026 = Event{
	Name:  "WE-ICT 2026",
	Venue: "BUET, Dhaka",
	Date:  "February 24, 2026",
}

// Subject is shared by every layout.
const Subject = "WE-ICT 2026 Registration Confirmed"

const detailedLayout = `
<div style="font-family: sans-serif; padding: 20px; color: #333;">
  <h2 style="color: #2563eb;">Registration Successful!</h2>
  <p>Hi <strong>{{.Name}}</strong>,</p>
  <p>You have successfully registered for the workshop session: <strong>{{.Topic}}</strong>.</p>
  <p><strong>Venue:</strong> {{.Event.Venue}}</p>
  <p><strong>Date:</strong> {{.Event.Date}}</p>
  <hr style="border: 0; border-top: 1px solid #eee; margin: 20px 0;">
  <p style="font-size: 12px; color: #777;">This is an automated confirmation from the {{.Event.Name}} team.</p>
</div>
`

const compactLayout = `<p>Dear {{.Name}},</p>
<p>Your registration for <strong>{{.Event.Name}}</strong> ({{.Topic}}) has been received.</p>
<p>Venue: {{.Event.Venue}} · Date: {{.Event.Date}}.</p>`

// Template is a named confirmation layout.
type Template struct {
	name  string
	event Event
	tmpl  *template.Template
}

// Detailed is the styled card layout.
var Detailed = mustTemplate("detailed", detailedLayout, WEICT2026)

// Compact is the three-paragraph plain layout.
var Compact = mustTemplate("compact", compactLayout, WEICT2026)

// New parses layout into a Template bound to event.
func New(name, layout string, event Event) (Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(layout)
	if err != nil {
		return Template{}, fmt.Errorf("parse %s confirmation template: %w", name, err)
	}
	return Template{name: name, event: event, tmpl: tmpl}, nil
}

func mustTemplate(name, layout string, event Event) Template {
	t, err := New(name, layout, event)
	if err != nil {
		panic(err)
	}
	return t
}

// Name identifies the layout in logs.
func (t Template) Name() string {
	return t.name
}

// Message is a rendered confirmation.
type Message struct {
	Subject string
	HTML    string
}

// Render fills the layout for reg.
func (t Template) Render(reg models.Registration) (Message, error) {
	if t.tmpl == nil {
		return Message{}, fmt.Errorf("confirmation template %q is not initialized", t.name)
	}
	var buf bytes.Buffer
	data := struct {
		Name  string
		Topic string
		Event Event
	}{Name: reg.Name, Topic: reg.Topic, Event: t.event}
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render %s confirmation: %w", t.name, err)
	}
	return Message{Subject: Subject, HTML: buf.String()}, nil
}
