package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// BuildEmail is the content of a build outcome email.
type BuildEmail struct {
	Title    string
	Pipeline string
	BuildID  string
	Version  string
	Status   string
	Lines    []string
}

func BuildEmailBody(e BuildEmail) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		color := "#16a34a"
		if e.Status != "success" {
			color = "#dc2626"
		}
		if _, err := fmt.Fprintf(w,
			`<html><body style="font-family:sans-serif"><h2 style="color:%s">%s</h2><table>`,
			color, templ.EscapeString(e.Title),
		); err != nil {
			return err
		}
		rows := [][2]string{
			{"Pipeline", e.Pipeline},
			{"Build", e.BuildID},
			{"Version", e.Version},
			{"Status", e.Status},
		}
		for _, r := range rows {
			if _, err := fmt.Fprintf(w, `<tr><td><b>%s</b></td><td>%s</td></tr>`,
				templ.EscapeString(r[0]), templ.EscapeString(r[1]),
			); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "</table>"); err != nil {
			return err
		}
		for _, l := range e.Lines {
			if _, err := fmt.Fprintf(w, "<p>%s</p>", templ.EscapeString(l)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

func RenderBuildEmail(ctx context.Context, e BuildEmail) (string, error) {
	var buf bytes.Buffer
	if err := BuildEmailBody(e).Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
