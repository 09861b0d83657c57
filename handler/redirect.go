package handler

import (
	"html/template"
	"net/http"

	"github.com/crmpay/qpbridge/infra/logger"
)

// redirectTemplate renders a minimal self-submitting form so the
// shopper's browser lands on the gateway's hosted page without any
// client-side code in the host application.
var redirectTemplate = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Redirecting to payment</title>
</head>
<body onload="document.forms[0].submit()">
<p>Redirecting to the payment page&hellip;</p>
<form action="{{.Action}}" method="post">
{{- range $name, $value := .Fields}}
<input type="hidden" name="{{$name}}" value="{{$value}}">
{{- end}}
<noscript><button type="submit">Continue to payment</button></noscript>
</form>
</body>
</html>
`))

type redirectPage struct {
	Action string
	Fields map[string]string
}

func writeRedirectPage(w http.ResponseWriter, action string, fields map[string]string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if err := redirectTemplate.Execute(w, redirectPage{Action: action, Fields: fields}); err != nil {
		logger.Error("Failed to render redirect page", err)
	}
}
