package ops

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

type logLevelConfig struct {
	format Format
}

// LogLevelOption configures LogLevelHandler.
type LogLevelOption func(*logLevelConfig)

// WithLogLevelDefaultFormat sets the default response format for LogLevelHandler.
// ?format=text|json|yaml overrides it per request. Default is FormatText.
func WithLogLevelDefaultFormat(f Format) LogLevelOption {
	return func(c *logLevelConfig) { c.format = f }
}

// LogLevelSnapshot is a point-in-time view of a slog.LevelVar.
type LogLevelSnapshot struct {
	// Level is one of debug/info/warn/error; custom levels are bucketed down.
	Level string `json:"level" yaml:"level"`
	// LevelValue is the raw slog level (Debug=-4, Info=0, Warn=4, Error=8).
	LevelValue int `json:"level_value" yaml:"level_value"`
}

// LogLevel returns a snapshot of lv.
func LogLevel(lv *slog.LevelVar) LogLevelSnapshot {
	if lv == nil {
		return LogLevelSnapshot{}
	}
	l := lv.Level()
	return LogLevelSnapshot{Level: levelName(l), LevelValue: int(l)}
}

type logLevelResponse struct {
	OK    bool   `json:"ok" yaml:"ok"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	Level *LogLevelSnapshot `json:"level,omitempty" yaml:"level,omitempty"`
	Old   *LogLevelSnapshot `json:"old,omitempty" yaml:"old,omitempty"`
}

// LogLevelHandler reads (GET/HEAD) or sets (POST ?level=debug|info|warn|error) lv.
//
// Level names are case-insensitive; "warning" and "err" are accepted aliases.
// A POST response carries both the old and the new level.
func LogLevelHandler(lv *slog.LevelVar, opts ...LogLevelOption) http.Handler {
	if lv == nil {
		panic("ops: nil slog.LevelVar")
	}
	cfg := logLevelConfig{format: FormatText}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if !cfg.format.valid() {
		cfg.format = FormatText
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := formatFromRequest(r, cfg.format)
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			cur := LogLevel(lv)
			writeLogLevel(w, r, format, http.StatusOK, logLevelResponse{OK: true, Level: &cur})
		case http.MethodPost:
			raw, _ := queryValue(r, "level")
			l, ok := ParseLevel(raw)
			if !ok {
				writeLogLevel(w, r, format, http.StatusBadRequest, logLevelResponse{
					Error: "invalid level (want one of: debug, info, warn, error)",
				})
				return
			}
			old := LogLevel(lv)
			lv.Set(l)
			cur := LogLevel(lv)
			writeLogLevel(w, r, format, http.StatusOK, logLevelResponse{OK: true, Level: &cur, Old: &old})
		default:
			methodNotAllowed(w, "GET, HEAD, POST")
			writeLogLevel(w, r, format, http.StatusMethodNotAllowed, logLevelResponse{Error: "method not allowed"})
		}
	})
}

func writeLogLevel(w http.ResponseWriter, r *http.Request, f Format, code int, resp logLevelResponse) {
	writeFormatted(w, r, f, code, resp, resp.OK, resp.Error, func() string {
		var t textLines
		if resp.Old != nil {
			t.add("log", "old", "level", resp.Old.Level)
			t.add("log", "old", "level_value", strconv.Itoa(resp.Old.LevelValue))
		}
		if resp.Level != nil {
			t.add("log", "current", "level", resp.Level.Level)
			t.add("log", "current", "level_value", strconv.Itoa(resp.Level.LevelValue))
		}
		return t.String()
	})
}

// ParseLevel parses a level name the way LogLevelHandler does.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "err":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// levelName buckets l by the slog defaults: below info is debug, and so on.
func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "debug"
	case l < slog.LevelWarn:
		return "info"
	case l < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}
