// internal/logger/logger.go
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig struct {
	Level      string `yaml:"level"` // debug, info, warn, error, fatal
	LogToFile  bool   `yaml:"file"`
	LogToJSON  bool   `yaml:"json"`
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"`    // megabytes
	MaxBackups int    `yaml:"max_backups"` // number of backups
	MaxAge     int    `yaml:"max_age"`     // days
	Compress   bool   `yaml:"compress"`    // compress old log files
}

// DefaultLogConfig returns console logging at info level, with rotation
// settings ready for when file output is enabled.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		LogToFile:  false,
		LogToJSON:  false,
		FilePath:   "server.log",
		MaxSize:    10, // 10 MB
		MaxBackups: 5,  // 5 backups
		MaxAge:     30, // 30 days
		Compress:   true,
	}
}

// InitLogger configures the global zerolog logger from config.
// Loggers created with NewLogger afterwards write to its output.
func InitLogger(config LogConfig) {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	var writers []io.Writer
	if !config.LogToJSON {
		writers = append(writers, consoleWriter(os.Stdout))
	} else {
		writers = append(writers, os.Stdout)
	}
	if config.LogToFile && config.FilePath != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		}
		writers = append(writers, fileWriter)
	}
	var output io.Writer
	if len(writers) > 1 {
		output = io.MultiWriter(writers...)
	} else {
		output = writers[0]
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
		PartsOrder: []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
			"component",
			zerolog.MessageFieldName,
		},
		FieldsExclude: []string{"component"},
		FormatLevel: func(i interface{}) string {
			level := strings.ToUpper(fmt.Sprintf("%s", i))
			switch level {
			case "DEBUG":
				return "\033[36m[ " + fmt.Sprintf("%-5s", level) + " ]\033[0m"
			case "INFO":
				return "\033[32m[ " + fmt.Sprintf("%-5s", level) + " ]\033[0m"
			case "WARN":
				return "\033[33m[ " + fmt.Sprintf("%-5s", level) + " ]\033[0m"
			case "ERROR":
				return "\033[31m[ " + fmt.Sprintf("%-5s", level) + " ]\033[0m"
			case "FATAL":
				return "\033[35m[ " + fmt.Sprintf("%-5s", level) + " ]\033[0m"
			default:
				return "\033[37m[ " + fmt.Sprintf("%-5s", level) + " ]\033[0m"
			}
		},
		FormatTimestamp: func(i interface{}) string {
			return fmt.Sprintf("\033[90m%s\033[0m", i)
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprintf("\033[34m%s\033[0m: ", i)
		},
		FormatErrFieldName: func(i interface{}) string {
			return fmt.Sprintf("\033[31m%s\033[0m: ", i)
		},
	}
}

type Logger struct {
	logger zerolog.Logger
}

// NewLogger returns a logger bound to the global output, tagged with component.
func NewLogger(component string) *Logger {
	return &Logger{
		logger: log.With().Str("component", component).Logger(),
	}
}

// New returns a JSON logger writing to w. Used where output must be captured.
func New(w io.Writer, component string) *Logger {
	return &Logger{
		logger: zerolog.New(w).With().Timestamp().Str("component", component).Logger(),
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		logger: l.logger.With().Interface(key, value).Logger(),
	}
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{
		logger: ctx.Logger(),
	}
}

func (l *Logger) Debug(msg string)                       { l.logger.Debug().Msg(msg) }
func (l *Logger) Debugf(format string, v ...interface{}) { l.logger.Debug().Msgf(format, v...) }
func (l *Logger) Info(msg string)                        { l.logger.Info().Msg(msg) }
func (l *Logger) Infof(format string, v ...interface{})  { l.logger.Info().Msgf(format, v...) }
func (l *Logger) Warn(msg string)                        { l.logger.Warn().Msg(msg) }
func (l *Logger) Warnf(format string, v ...interface{})  { l.logger.Warn().Msgf(format, v...) }
func (l *Logger) Error(msg string)                       { l.logger.Error().Msg(msg) }
func (l *Logger) Errorf(format string, v ...interface{}) { l.logger.Error().Msgf(format, v...) }
func (l *Logger) Fatal(msg string)                       { l.logger.Fatal().Msg(msg) }
func (l *Logger) Fatalf(format string, v ...interface{}) { l.logger.Fatal().Msgf(format, v...) }

// LogEvent writes a hub lifecycle event. Known events get a short readable
// message; the event name, client id and detail are always attached as fields.
func (l *Logger) LogEvent(level string, event string, clientID string, detail string) {
	evt := l.logger.With().Str("event", event)
	if clientID != "" {
		evt = evt.Str("client_id", clientID)
	}
	if detail != "" {
		evt = evt.Str("detail", detail)
	}
	logger := evt.Logger()

	var message string
	switch event {
	case "client_connected":
		message = fmt.Sprintf("\033[96m%s\033[0m connected", shortID(clientID))
	case "client_disconnected":
		message = fmt.Sprintf("\033[96m%s\033[0m disconnected", shortID(clientID))
	case "message_received":
		message = fmt.Sprintf("\033[95m%s\033[0m: \033[97m%s\033[0m", shortID(clientID), detail)
	case "delivery_failed":
		message = fmt.Sprintf("delivery to \033[96m%s\033[0m failed: \033[31m%s\033[0m", shortID(clientID), detail)
	case "capacity_exceeded":
		message = "registration rejected: hub is full"
	default:
		if detail != "" {
			message = fmt.Sprintf("%s: %s", strings.ReplaceAll(event, "_", " "), detail)
		} else {
			message = strings.ReplaceAll(event, "_", " ")
		}
	}

	switch level {
	case "debug":
		logger.Debug().Msg(message)
	case "warn":
		logger.Warn().Msg(message)
	case "error":
		logger.Error().Msg(message)
	case "fatal":
		logger.Fatal().Msg(message)
	default:
		logger.Info().Msg(message)
	}
}

// shortID trims a uuid to its first group for console readability.
func shortID(id string) string {
	if id == "" {
		return "client"
	}
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
