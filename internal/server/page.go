package server

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const pageStyle = `<style>
body{font-family:system-ui,sans-serif;margin:2rem;max-width:40rem}
nav a{margin-right:1rem}nav a.active{font-weight:bold}
li.done span{text-decoration:line-through;color:#888}
.warning{color:#c33}
</style>`

// page renders the document shell around the server-side body markup. The
// body is produced by html.Render and is already escaped.
func page(title, body, errorsHTML string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		parts := []string{
			`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`,
			`<title>`, templ.EscapeString(title), `</title>`,
			pageStyle,
			`</head><body>`,
			body,
			`<div id="mist-errors">`, errorsHTML, `</div>`,
			`<script src="/_mist/client.js"></script>`,
			`</body></html>`,
		}
		for _, p := range parts {
			if _, err := io.WriteString(w, p); err != nil {
				return err
			}
		}
		return nil
	})
}
