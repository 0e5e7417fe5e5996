// Package email provides an SMTP notifier that renders staffing
// notifications through per-template HTML bodies.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/Strob0t/StaffForge/internal/port/notifier"
)

const providerName = "email"

func init() {
	notifier.Register(providerName, func(config map[string]string) (notifier.Notifier, error) {
		port := 587
		if p := config["port"]; p != "" {
			v, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("email: invalid port %q: %w", p, err)
			}
			port = v
		}
		return NewNotifier(SMTPConfig{
			Host:     config["host"],
			Port:     port,
			From:     config["from"],
			User:     config["user"],
			Password: config["password"],
		}), nil
	})
}

// SMTPConfig holds the configuration for SMTP connections.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	User     string
	Password string
}

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Notifier sends email notifications via SMTP.
type Notifier struct {
	cfg  SMTPConfig
	send sendFunc
}

// NewNotifier creates a new email notifier.
func NewNotifier(cfg SMTPConfig) *Notifier {
	return &Notifier{cfg: cfg, send: smtp.SendMail}
}

func (n *Notifier) Name() string { return providerName }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{RichFormatting: true, Recipients: true}
}

// Send mails the rendered notification to every recipient that is an email
// address. Other recipient identities are skipped.
func (n *Notifier) Send(ctx context.Context, nt notifier.Notification) error {
	if n.cfg.Host == "" || n.cfg.From == "" {
		return notifier.ErrNotConfigured
	}
	to := addresses(nt.To)
	if len(to) == 0 {
		slog.DebugContext(ctx, "email notification without address recipients", "template", nt.Template)
		return nil
	}

	body, err := Render(nt)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		n.cfg.From, strings.Join(to, ", "), nt.Title, body)

	var auth smtp.Auth
	if n.cfg.Password != "" {
		user := n.cfg.User
		if user == "" {
			user = n.cfg.From
		}
		auth = smtp.PlainAuth("", user, n.cfg.Password, n.cfg.Host)
	}
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	if err := n.send(addr, auth, n.cfg.From, to, []byte(msg)); err != nil {
		return fmt.Errorf("email send %s: %w", nt.Template, err)
	}
	return nil
}

func addresses(ids []string) []string {
	var out []string
	for _, id := range ids {
		if strings.Contains(id, "@") {
			out = append(out, id)
		}
	}
	return out
}

const layout = `{{define "layout"}}<html><body>
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
{{block "details" .}}{{end}}
<p style="color:#888">{{.Source}}</p>
</body></html>{{end}}`

var bodies = map[string]string{
	"time_off_requested": `{{define "details"}}<table>
<tr><td>Consultant</td><td>{{index .Data "consultant_name"}}</td></tr>
<tr><td>Days</td><td>{{index .Data "days_requested"}}</td></tr>
<tr><td>Reason</td><td>{{index .Data "reason"}}</td></tr>
<tr><td>Reference</td><td>{{index .Data "code"}}</td></tr>
</table>{{end}}`,
	"time_off_approved": `{{define "details"}}<p>Reference {{index .Data "code"}}. Enjoy your time off.</p>{{end}}`,
	"time_off_rejected": `{{define "details"}}<p>Reason: {{index .Data "rejection_reason"}}</p>{{end}}`,
	"assignment_approval_required": `{{define "details"}}<table>
<tr><td>Consultant</td><td>{{index .Data "consultant_name"}}</td></tr>
<tr><td>Role</td><td>{{index .Data "role"}}</td></tr>
<tr><td>Allocation</td><td>{{index .Data "percentage"}}%</td></tr>
<tr><td>Level</td><td>{{index .Data "level_name"}}</td></tr>
</table>{{end}}`,
	"assignment_approved":      `{{define "details"}}<p>Reference {{index .Data "code"}} is confirmed.</p>{{end}}`,
	"assignment_rejected":      `{{define "details"}}<p>Reason: {{index .Data "reason"}}</p>{{end}}`,
	"assignment_started":       `{{define "details"}}<p>Role: {{index .Data "role"}}</p>{{end}}`,
	"budget_threshold_reached": `{{define "details"}}<p>Used {{index .Data "used"}} of {{index .Data "total"}}.</p>{{end}}`,
}

var templates = func() map[string]*template.Template {
	out := make(map[string]*template.Template, len(bodies)+1)
	base := template.Must(template.New("email").Parse(layout))
	out[""] = base
	for name, body := range bodies {
		out[name] = template.Must(template.Must(base.Clone()).Parse(body))
	}
	return out
}()

// Render returns the HTML body of a notification. Unknown templates fall
// back to the plain layout.
func Render(nt notifier.Notification) (string, error) {
	t, ok := templates[nt.Template]
	if !ok {
		t = templates[""]
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", nt); err != nil {
		return "", fmt.Errorf("render email %s: %w", nt.Template, err)
	}
	return buf.String(), nil
}
