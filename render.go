package listwarden

import (
	"bytes"
	"context"
	"net/mail"
	"strings"

	"github.com/flosch/pongo2/v6"
	"github.com/listwarden/listwarden/mailutil"
)

// builtinTemplates holds the hardcoded fallback for each well-known
// template name (spec.md §4.3, §9). Keeping them adjacent to the lookup
// code, as the design notes ask.
var builtinTemplates = map[string]*Template{
	"generic-failure": {
		Name:    "generic-failure",
		Subject: "Re: {{ subject }}",
		Body:    "Your message to {{ list.Address }} could not be processed.\n\n{{ reason }}\n",
	},
	"generic-help": {
		Name:    "generic-help",
		Subject: "Help for {{ list.Name }}",
		Body: "" +
			"This is {{ list.Name }} <{{ list.Address }}>.\n" +
			"List-Id: {{ list.ListIDHeader }}\n" +
			"Subscribe: {{ list.SubscriptionMailto }}\n" +
			"Unsubscribe: {{ list.UnsubscriptionMailto }}\n" +
			"Owner: {{ list.OwnerMailto }}\n" +
			"{{ list.Description }}\n",
	},
	"subscription-confirmation": {
		Name:    "subscription-confirmation",
		Subject: "Subscription confirmed for {{ list.Address }}",
		Body:    "You have been subscribed to {{ list.Address }} with address {{ address }}.\n",
	},
	"unsubscription-confirmation": {
		Name:    "unsubscription-confirmation",
		Subject: "Unsubscription confirmed for {{ list.Address }}",
		Body:    "You have been unsubscribed from {{ list.Address }}.\n",
	},
	"subscription-request-notice-owner": {
		Name:    "subscription-request-notice-owner",
		Subject: "Subscription request for {{ list.Address }}",
		Body:    "{{ address }} has requested to subscribe to {{ list.Address }} and needs your approval.\n",
	},
	"admin-notice": {
		Name:    "admin-notice",
		Subject: "Notice for {{ list.Address }}",
		Body:    "{{ reason }}\n",
	},
}

// LookupTemplate implements the (list,name) -> (NULL,name) -> builtin
// fallback chain of spec.md §4.3.
func LookupTemplate(ctx context.Context, db DB, listPK *int64, name string) (*Template, error) {
	if listPK != nil {
		if t, err := db.GetTemplate(ctx, listPK, name); err == nil {
			return t, nil
		} else if e, ok := err.(*Error); !ok || e.Kind != KindNotFound {
			return nil, err
		}
	}

	if t, err := db.GetTemplate(ctx, nil, name); err == nil {
		return t, nil
	} else if e, ok := err.(*Error); !ok || e.Kind != KindNotFound {
		return nil, err
	}

	if t, ok := builtinTemplates[name]; ok {
		return t, nil
	}

	return nil, NotFound("template " + name)
}

func renderJinja(src string, data pongo2.Context) (string, error) {
	tpl, err := pongo2.FromString(src)
	if err != nil {
		return "", WrapParse(err, "parsing template")
	}
	out, err := tpl.Execute(data)
	if err != nil {
		return "", WrapParse(err, "executing template")
	}
	return out, nil
}

// RenderTemplate renders t's subject, headers and body against data and
// finalises the result into RFC5322 bytes with CRLF line endings.
func RenderTemplate(t *Template, data pongo2.Context) ([]byte, error) {
	subject, err := renderJinja(t.Subject, data)
	if err != nil {
		return nil, err
	}

	headerTemplates, err := t.Headers()
	if err != nil {
		return nil, err
	}

	header := mail.Header{}
	header["Subject"] = []string{mailutil.EncodeHeaderValue(subject)}
	for name, tmpl := range headerTemplates {
		value, err := renderJinja(tmpl, data)
		if err != nil {
			return nil, err
		}
		if value == "" {
			continue
		}
		header[name] = []string{mailutil.EncodeHeaderValue(value)}
	}

	body, err := renderJinja(t.Body, data)
	if err != nil {
		return nil, err
	}

	return finalise(header, body)
}

func finalise(header mail.Header, body string) ([]byte, error) {
	var buf bytes.Buffer
	if err := mailutil.WriteHeader(&buf, header); err != nil {
		return nil, err
	}
	buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return buf.Bytes(), nil
}

// templateContext is the common pongo2 context every reply template gets:
// the list, and the specific fields each reply kind adds on top.
func templateContext(l *List, extra pongo2.Context) pongo2.Context {
	ctx := pongo2.Context{"list": l}
	for k, v := range extra {
		ctx[k] = v
	}
	return ctx
}
