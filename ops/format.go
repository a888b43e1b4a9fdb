package ops

import (
	"encoding/json"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format controls the response rendering format.
//
// It is shared by every ops handler.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatYAML
)

func (f Format) valid() bool {
	return f == FormatText || f == FormatJSON || f == FormatYAML
}

// formatFromRequest honors ?format=text|json|yaml; anything else keeps def.
func formatFromRequest(r *http.Request, def Format) Format {
	if r == nil || r.URL == nil {
		return def
	}
	switch r.URL.Query().Get("format") {
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	case "text":
		return FormatText
	default:
		return def
	}
}

// writeFormatted writes resp in f with status code. Text output comes from text,
// which is only called for a successful response; errors render as one line.
// HEAD requests get headers only.
func writeFormatted(w http.ResponseWriter, r *http.Request, f Format, code int, resp any, okText bool, errText string, text func() string) {
	w.Header().Set("Cache-Control", "no-store")
	switch f {
	case FormatJSON:
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(code)
		if r.Method == http.MethodHead {
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	case FormatYAML:
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		w.WriteHeader(code)
		if r.Method == http.MethodHead {
			return
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		_ = enc.Encode(resp)
		_ = enc.Close()
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(code)
		if r.Method == http.MethodHead {
			return
		}
		if !okText {
			writeTextError(w, escapeTextField(errText))
			return
		}
		if text != nil {
			_, _ = w.Write([]byte(text()))
		}
	}
}

func writeTextError(w http.ResponseWriter, msg string) {
	if msg != "" {
		_, _ = w.Write([]byte(msg + "\n"))
		return
	}
	_, _ = w.Write([]byte("error\n"))
}

// textLines builds line-based, tab-separated output:
//
//	<kind>\t<subject>\t<field>\t<value>\n
type textLines struct {
	b strings.Builder
}

func (t *textLines) add(kind, subject, field, value string) {
	if subject == "" || field == "" {
		return
	}
	t.b.WriteString(kind)
	t.b.WriteByte('\t')
	t.b.WriteString(escapeTextField(subject))
	t.b.WriteByte('\t')
	t.b.WriteString(field)
	t.b.WriteByte('\t')
	t.b.WriteString(escapeTextField(value))
	t.b.WriteByte('\n')
}

func (t *textLines) String() string { return t.b.String() }

// escapeTextField escapes backslash and ASCII control characters so one value
// never spans fields or lines. Strings that need no escaping are returned as-is.
func escapeTextField(s string) string {
	need := false
	for i := 0; i < len(s); i++ {
		if c := s[i]; c == '\\' || c < 0x20 {
			need = true
			break
		}
	}
	if !need {
		return s
	}
	const hex = "0123456789abcdef"
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '\n':
			b.WriteString(`\n`)
		default:
			if c < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte(hex[c>>4])
				b.WriteByte(hex[c&0x0f])
			} else {
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}

// queryValue returns the first value of the query parameter name and whether it
// was present at all. Present-but-empty values report ("", true).
func queryValue(r *http.Request, name string) (string, bool) {
	if r == nil || r.URL == nil {
		return "", false
	}
	vs, ok := r.URL.Query()[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
}
