package usecase

import (
	"bytes"
	htmltemplate "html/template"
	"text/template"

	"github.com/shandysiswandi/otpgate/internal/notification/entity"
)

type contentTemplate struct {
	subject string
	text    string
	html    string
	sms     string
}

var contentTemplates = map[entity.TriggerKey]contentTemplate{
	entity.TriggerKeyLoginCode: {
		subject: "Your Login OTP - Secure Access",
		text:    "Your OTP for login is: {{.code}}. Valid for {{.ttl_minutes}} minutes. Do not share this code.",
		html: `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1 style="margin: 0; font-size: 28px;">Login Verification</h1>
  <p style="font-size: 16px; color: #333;">Your secure login OTP is:</p>
  <div style="border: 2px solid #667eea; padding: 20px; text-align: center; font-size: 32px; font-weight: bold; letter-spacing: 5px; color: #667eea;">{{.code}}</div>
  <p style="color: #666; font-size: 14px;">This OTP expires in {{.ttl_minutes}} minutes.</p>
  <p style="color: #666; font-size: 14px;">Keep this code secure and don't share it with anyone.</p>
  <p style="color: #999; font-size: 12px;">If you didn't request this, please ignore this email.</p>
</div>`,
		sms: "Your secure login OTP: {{.code}}\nExpires in {{.ttl_minutes}} minutes\nKeep it confidential",
	},
	entity.TriggerKeyResetCode: {
		subject: "Password Reset OTP - Security Alert",
		text:    "Your password reset OTP is: {{.code}}. Valid for {{.ttl_minutes}} minutes.",
		html: `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1 style="margin: 0; font-size: 28px;">Password Reset</h1>
  <p style="font-size: 16px; color: #333;">Your password reset OTP is:</p>
  <div style="border: 2px solid #ff6b6b; padding: 20px; text-align: center; font-size: 32px; font-weight: bold; letter-spacing: 5px; color: #ff6b6b;">{{.code}}</div>
  <p style="color: #666; font-size: 14px;">This OTP expires in {{.ttl_minutes}} minutes.</p>
  <p style="color: #999; font-size: 12px;">If you didn't request this, please contact support immediately.</p>
</div>`,
		sms: "Password reset OTP: {{.code}}\nExpires in {{.ttl_minutes}} minutes\nContact support if you didn't request this",
	},
	entity.TriggerKeyWelcome: {
		subject: "Welcome to {{.app_name}}!",
		text:    "Hi {{.name}}, welcome to {{.app_name}}! Your account has been created successfully.",
		html: `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1 style="margin: 0; font-size: 28px;">Welcome {{.name}}!</h1>
  <p style="font-size: 16px; color: #333;">Your account has been created successfully.</p>
  <p style="margin: 0; color: #333;">Email verified</p>
  <p style="margin: 5px 0 0 0; color: #333;">Phone verified</p>
  <p style="color: #666;">You can now login and start using all our features!</p>
  <p style="color: #999; font-size: 12px;">&copy; {{.year}} {{.app_name}}</p>
</div>`,
		sms: "Welcome {{.name}}! Your {{.app_name}} account is ready.",
	},
}

func renderText(name, tpl string, data map[string]any) (string, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(tpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func renderHTML(name, tpl string, data map[string]any) (string, error) {
	t, err := htmltemplate.New(name).Option("missingkey=zero").Parse(tpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// render builds the message for ch. Names in the welcome HTML are escaped.
func render(tk entity.TriggerKey, ch entity.Channel, data map[string]any) (entity.Content, error) {
	tpl, ok := contentTemplates[tk]
	if !ok {
		return entity.Content{}, errUnknownTrigger
	}

	if ch == entity.ChannelSMS {
		text, err := renderText("sms", tpl.sms, data)
		if err != nil {
			return entity.Content{}, err
		}
		return entity.Content{Text: text}, nil
	}

	subject, err := renderText("subject", tpl.subject, data)
	if err != nil {
		return entity.Content{}, err
	}
	text, err := renderText("text", tpl.text, data)
	if err != nil {
		return entity.Content{}, err
	}
	html, err := renderHTML("html", tpl.html, data)
	if err != nil {
		return entity.Content{}, err
	}

	return entity.Content{Subject: subject, Text: text, HTML: html}, nil
}
