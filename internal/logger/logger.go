package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Service is attached to every log line.
const Service = "flyerless-proxy"

// SecretFields never reach the log output, whatever logs them.
var SecretFields = []string{"api_key", "access_token", "API_KEY", "API_token"}

const (
	colorRed     = 31
	colorGreen   = 32
	colorYellow  = 33
	colorMagenta = 35

	colorBold = 1
)

var levelLabels = map[string]string{
	"trace": colorize("TRC", colorMagenta),
	"debug": colorize("DBG", colorYellow),
	"info":  colorize("INF", colorGreen),
	"warn":  colorize("WRN", colorRed),
	"error": colorize("ERR", colorRed),
	"fatal": colorize("FTL", colorRed),
	"panic": colorize("PNC", colorRed),
}

func colorize(s interface{}, c int) string {
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

// New creates a logger based on the ENV environment variable. An empty level
// keeps zerolog's default.
func New(level string) zerolog.Logger {
	env := os.Getenv("ENV")

	var log zerolog.Logger
	if env == "development" || env == "dev" || env == "" {
		log = NewDevelopment(os.Stderr)
	} else {
		log = NewProduction(os.Stderr)
	}

	if level == "" {
		return log
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		log.Warn().Str("level", level).Msg("Unknown log level, keeping default")
		return log
	}
	return log.Level(lvl)
}

// NewDevelopment creates a development logger with console output and colors
func NewDevelopment(out io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:           out,
		TimeFormat:    "2006-01-02 15:04:05",
		FieldsExclude: SecretFields,
		FormatLevel: func(i interface{}) string {
			ll, ok := i.(string)
			if !ok {
				return strings.ToUpper(fmt.Sprintf("%s", i))[0:3]
			}
			if l, ok := levelLabels[ll]; ok {
				return l
			}
			return colorize(strings.ToUpper(ll)[0:3], colorBold)
		},
	}
	return zerolog.New(output).With().Timestamp().Str("service", Service).Logger()
}

// NewProduction creates a production logger with JSON output and UNIX timestamps
func NewProduction(out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(redactWriter{out: out}).With().Timestamp().Str("service", Service).Logger()
}

// redactWriter strips SecretFields from JSON log lines.
type redactWriter struct {
	out io.Writer
}

func (w redactWriter) Write(p []byte) (int, error) {
	if !containsSecretField(p) {
		return w.out.Write(p)
	}

	var entry map[string]json.RawMessage
	if err := json.Unmarshal(p, &entry); err != nil {
		return w.out.Write(p)
	}
	for _, f := range SecretFields {
		delete(entry, f)
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return 0, err
	}
	if _, err := w.out.Write(append(line, '\n')); err != nil {
		return 0, err
	}
	return len(p), nil
}

func containsSecretField(p []byte) bool {
	for _, f := range SecretFields {
		if bytes.Contains(p, []byte(`"`+f+`":`)) {
			return true
		}
	}
	return false
}
