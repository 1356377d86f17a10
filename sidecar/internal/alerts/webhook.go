package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/obsidianstack/sidecar/sidecar/internal/config"
)

// encoders builds the request body for each webhook type.
var encoders = map[string]func(*Alert) ([]byte, error){
	"slack": slackBody,
	"teams": teamsBody,
	"http":  httpBody,
}

// deliver posts a notification for a to every webhook target. Failures are
// logged and never reach the rule engine.
func (e *Engine) deliver(hooks []config.WebhookConfig, a *Alert) {
	for _, wh := range hooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		encode, ok := encoders[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		body, err := encode(a)
		if err == nil {
			err = e.post(url, body)
		}
		if err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type, "rule", a.RuleName, "state", a.State, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.RuleName, "state", a.State)
	}
}

// slackBody renders a as a Slack incoming-webhook message.
func slackBody(a *Alert) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* %s", severityLabel(a.Severity, a.State), a.Message)
	for _, f := range facts(a) {
		fmt.Fprintf(&b, "\n%s: %s", f.Name, f.Value)
	}
	for _, r := range a.Reasons {
		fmt.Fprintf(&b, "\n• %s", r)
	}
	return json.Marshal(map[string]string{"text": b.String()})
}

type teamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type teamsSection struct {
	ActivityTitle string      `json:"activityTitle"`
	Facts         []teamsFact `json:"facts"`
	Text          string      `json:"text,omitempty"`
}

type teamsCard struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor"`
	Summary    string         `json:"summary"`
	Title      string         `json:"title"`
	Sections   []teamsSection `json:"sections"`
}

// teamsBody renders a as an Office 365 connector card with the node
// context as facts and the health reasons as the section text.
func teamsBody(a *Alert) ([]byte, error) {
	card := teamsCard{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		ThemeColor: severityColor(a.Severity, a.State),
		Summary:    a.Message,
		Title:      fmt.Sprintf("Logstash %s: %s", a.State, a.RuleName),
		Sections: []teamsSection{{
			ActivityTitle: a.Message,
			Facts:         facts(a),
			Text:          strings.Join(a.Reasons, "<br>"),
		}},
	}
	return json.Marshal(card)
}

// httpBody posts the alert as-is for generic receivers.
func httpBody(a *Alert) ([]byte, error) {
	return json.Marshal(struct {
		Event string `json:"event"`
		Alert *Alert `json:"alert"`
	}{Event: "alert." + a.State, Alert: a})
}

// facts lists the node context shared by the chat formats. Empty values
// are left out.
func facts(a *Alert) []teamsFact {
	fs := []teamsFact{
		{"Logstash", a.Source},
		{"Health", string(a.Health)},
		{"Destination", a.Destination},
		{"Condition", a.Condition},
	}
	if a.State == StateFiring {
		fs = append(fs, teamsFact{"Value", fmt.Sprintf("%.2f", a.Value)})
	}
	out := fs[:0]
	for _, f := range fs {
		if f.Value != "" {
			out = append(out, f)
		}
	}
	return out
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alerts: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("alerts: post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("alerts: webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(severity, state string) string {
	if state == StateResolved {
		return "[RESOLVED]"
	}
	return "[" + strings.ToUpper(severity) + "]"
}

func severityColor(severity, state string) string {
	if state == StateResolved {
		return "2EB67D"
	}
	switch severity {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
