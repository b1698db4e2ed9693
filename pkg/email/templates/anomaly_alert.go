package templates

import (
	"context"
	"io"
	"time"

	"github.com/a-h/templ"
)

// AnomalyAlertParams is the data shown in a billing anomaly alert.
type AnomalyAlertParams struct {
	AnomalyID  string
	Provider   string
	Vendor     string
	EventID    string
	EventType  string
	Reason     string
	ReceivedAt time.Time
}

// AnomalyAlert is the operator e-mail for a webhook event that needs manual follow-up.
// Every value is HTML-escaped.
func AnomalyAlert(p AnomalyAlertParams) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		rows := [][2]string{
			{"Anomaly", p.AnomalyID},
			{"Provider", p.Provider + " (" + p.Vendor + ")"},
			{"Event", p.EventID},
			{"Type", p.EventType},
			{"Reason", p.Reason},
			{"Received", p.ReceivedAt.UTC().Format("2006-01-02 15:04:05 MST")},
		}
		if _, err := io.WriteString(w, "<h2>Billing event needs manual follow-up</h2>\n<table>\n"); err != nil {
			return err
		}
		for _, r := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			line := "<tr><td>" + templ.EscapeString(r[0]) + "</td><td>" + templ.EscapeString(r[1]) + "</td></tr>\n"
			if _, err := io.WriteString(w, line); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</table>")
		return err
	})
}
