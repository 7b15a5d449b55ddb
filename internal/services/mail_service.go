package services

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"net/url"
	"strings"
	"time"
)

type MailServiceInterface interface {
	SendSubscriptionActivated(to, companyName string, totalSeats int, pricePence int64, billingPeriod string) error
	SendCancellationNotice(to, companyName string, locked bool, daysRemaining int) error
	SendTrialReminder(to, companyName string, daysRemaining int) error
	SendMemberInvitation(to, fullName, token string) error
}

// SMTPConfig holds SMTP and branding settings.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	FromName   string
	UseSSL     bool // implicit TLS on 465; STARTTLS otherwise
	RequireTLS bool

	AppName    string
	AppBaseURL string
}

type smtpMailService struct {
	cfg     SMTPConfig
	htmlTpl *template.Template
	textTpl *template.Template
}

func NewSMTPMailService(cfg SMTPConfig) (MailServiceInterface, error) {
	return &smtpMailService{
		cfg:     cfg,
		htmlTpl: template.Must(template.New("html").Parse(mailHTMLTemplate)),
		textTpl: template.Must(template.New("text").Parse(mailTextTemplate)),
	}, nil
}

func (s *smtpMailService) SendSubscriptionActivated(to, companyName string, totalSeats int, pricePence int64, billingPeriod string) error {
	subject := "Your subscription is active"
	body := fmt.Sprintf(
		"The subscription for %s is now active: %d seats, billed %s at £%.2f plus VAT. You can manage seats and billing from your account settings.",
		companyName, totalSeats, billingPeriod, float64(pricePence)/100)

	return s.send(to, subject, mailData{
		Title:     subject,
		Intro:     body,
		ButtonURL: strings.TrimRight(s.cfg.AppBaseURL, "/") + "/settings/billing",
		ButtonTxt: "View billing",
	})
}

func (s *smtpMailService) SendCancellationNotice(to, companyName string, locked bool, daysRemaining int) error {
	subject := "Subscription cancelled"
	var body string
	if locked {
		body = fmt.Sprintf("The subscription for %s has been cancelled and access is now closed. You can reactivate at any time by starting a new subscription.", companyName)
	} else {
		body = fmt.Sprintf("The subscription for %s has been cancelled. Your team keeps full access for another %d days, after which the account will be locked.", companyName, daysRemaining)
	}

	return s.send(to, subject, mailData{
		Title:     subject,
		Intro:     body,
		ButtonURL: strings.TrimRight(s.cfg.AppBaseURL, "/") + "/settings/billing",
		ButtonTxt: "Manage subscription",
	})
}

func (s *smtpMailService) SendTrialReminder(to, companyName string, daysRemaining int) error {
	subject := fmt.Sprintf("Your trial ends in %d days", daysRemaining)
	if daysRemaining == 1 {
		subject = "Your trial ends tomorrow"
	}

	return s.send(to, subject, mailData{
		Title:     subject,
		Intro:     fmt.Sprintf("The free trial for %s is coming to an end. Pick a plan to keep your team's access; until then everything keeps working as normal.", companyName),
		ButtonURL: strings.TrimRight(s.cfg.AppBaseURL, "/") + "/settings/billing",
		ButtonTxt: "Choose a plan",
	})
}

func (s *smtpMailService) SendMemberInvitation(to, fullName, token string) error {
	link := fmt.Sprintf("%s/accept-invite?token=%s",
		strings.TrimRight(s.cfg.AppBaseURL, "/"), url.QueryEscape(token))
	subject := "You have been invited to join " + s.cfg.AppName

	return s.send(to, subject, mailData{
		Title:     subject,
		Intro:     fmt.Sprintf("Hi %s, your team has invited you to a seat on their %s workspace. Set a password to accept the invitation. The link expires in 7 days.", fullName, s.cfg.AppName),
		ButtonURL: link,
		ButtonTxt: "Accept invitation",
	})
}

type mailData struct {
	Title     string
	Intro     string
	ButtonURL string
	ButtonTxt string
	AppName   string
	Year      int
}

const mailHTMLTemplate = `<!doctype html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width,initial-scale=1">
  <title>{{.Title}}</title>
  <style>
    body { margin: 0; padding: 0; background: #f4f6f8; color: #1f2933; font-family: -apple-system, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; }
    .container { max-width: 600px; margin: 32px auto; background: #ffffff; border-radius: 8px; overflow: hidden; border: 1px solid #e4e7eb; }
    .header { padding: 24px 32px; border-bottom: 1px solid #e4e7eb; font-weight: 700; font-size: 18px; color: #1d4ed8; }
    .hero { padding: 32px; }
    h1 { margin: 0 0 12px; font-size: 22px; }
    p { margin: 0 0 16px; line-height: 1.6; color: #3e4c59; }
    .btn { display: inline-block; padding: 12px 24px; background: #2563eb; color: #ffffff !important; text-decoration: none; border-radius: 6px; font-weight: 600; }
    .footer { padding: 20px 32px; color: #7b8794; font-size: 12px; border-top: 1px solid #e4e7eb; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">{{.AppName}}</div>
    <div class="hero">
      <h1>{{.Title}}</h1>
      <p>{{.Intro}}</p>
      {{if .ButtonURL}}<p><a class="btn" href="{{.ButtonURL}}">{{.ButtonTxt}}</a></p>{{end}}
    </div>
    <div class="footer">© {{.Year}} {{.AppName}}. All rights reserved.</div>
  </div>
</body>
</html>`

const mailTextTemplate = `{{.Title}}

{{.Intro}}

{{if .ButtonURL}}Open this link:
{{.ButtonURL}}
{{end}}
— {{.AppName}} (c) {{.Year}}
`

func (s *smtpMailService) send(to, subject string, data mailData) error {
	data.AppName = s.cfg.AppName
	data.Year = time.Now().Year()

	var hb, tb bytes.Buffer
	if err := s.htmlTpl.Execute(&hb, data); err != nil {
		return err
	}
	if err := s.textTpl.Execute(&tb, data); err != nil {
		return err
	}
	return s.deliver(to, subject, hb.String(), tb.String())
}

func (s *smtpMailService) deliver(to, subject, htmlBody, textBody string) error {
	date := time.Now().Format(time.RFC1123Z)
	boundary := fmt.Sprintf("mixed_%d", time.Now().UnixNano())

	var msg bytes.Buffer
	write := func(format string, a ...any) { _, _ = msg.WriteString(fmt.Sprintf(format, a...)) }

	write("From: %s\r\n", s.fromHeader())
	write("To: %s\r\n", to)
	write("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject))
	write("Date: %s\r\n", date)
	write("MIME-Version: 1.0\r\n")
	write("Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	write("\r\n")

	write("--%s\r\n", boundary)
	write("Content-Type: text/plain; charset=UTF-8\r\n")
	write("Content-Transfer-Encoding: 7bit\r\n\r\n")
	write("%s\r\n\r\n", textBody)

	write("--%s\r\n", boundary)
	write("Content-Type: text/html; charset=UTF-8\r\n")
	write("Content-Transfer-Encoding: 7bit\r\n\r\n")
	write("%s\r\n\r\n", htmlBody)

	write("--%s--\r\n", boundary)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	if s.cfg.UseSSL {
		tlsCfg := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
		conn, err := tls.Dial("tcp", addr, tlsCfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		c, err := smtp.NewClient(conn, s.cfg.Host)
		if err != nil {
			return err
		}
		defer c.Quit()

		return s.submit(c, auth, to, msg.Bytes())
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer c.Quit()

	if ok, _ := c.Extension("STARTTLS"); ok {
		tlsCfg := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
		if err = c.StartTLS(tlsCfg); err != nil {
			return err
		}
	} else if s.cfg.RequireTLS {
		return fmt.Errorf("server does not support STARTTLS and RequireTLS=true")
	}

	return s.submit(c, auth, to, msg.Bytes())
}

func (s *smtpMailService) submit(c *smtp.Client, auth smtp.Auth, to string, msg []byte) error {
	if err := c.Auth(auth); err != nil {
		return err
	}
	if err := c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

func (s *smtpMailService) fromHeader() string {
	name := strings.TrimSpace(s.cfg.FromName)
	if name == "" {
		return s.cfg.From
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("UTF-8", name), s.cfg.From)
}
