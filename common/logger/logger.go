package logger

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05"

// Log is a leveled, structured logger for one subsystem.
type Log interface {
	WithField(name string, value interface{}) Log
	WithFields(fields Fields) Log
	Trace(args ...interface{})
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	// Print logs at info level; it lets a Log serve as chi's request logger.
	Print(args ...interface{})
}

// Fields is a set of keys/values to include in a structured log message.
type Fields map[string]interface{}

// LogFormat selects how log lines are rendered.
type LogFormat string

const (
	// LogFormatAuto renders text when stdout is a terminal and JSON otherwise.
	LogFormatAuto LogFormat = "auto"
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogFactory produces a logger that can be used to log messages for the
// specified subsystem.
type LogFactory func(subsystem string) Log

// LogrusLogger is a Log implementation that using the Logrus library.
type LogrusLogger struct {
	*logrus.Entry
}

func (l *LogrusLogger) WithField(name string, value interface{}) Log {
	return &LogrusLogger{Entry: l.Entry.WithField(name, value)}
}

func (l *LogrusLogger) WithFields(fields Fields) Log {
	return &LogrusLogger{Entry: l.Entry.WithFields(logrus.Fields(fields))}
}

// MakeLogrusLogFactory creates a log factory writing to out in the requested format.
// Every logger carries a "system" field naming its subsystem.
func MakeLogrusLogFactory(logRegistry *LogRegistry, out io.Writer, format LogFormat) LogFactory {
	formatter := makeFormatter(out, format)
	return func(subsystem string) Log {
		entry := newRegisteredEntry(logRegistry, subsystem, out, formatter)
		return &LogrusLogger{Entry: entry.WithField("system", subsystem)}
	}
}

// MakeLogrusLogFactoryStdOutPlain creates a log factory for command line tools, writing lines to stdout
// with neither a timestamp nor a system field.
func MakeLogrusLogFactoryStdOutPlain(logRegistry *LogRegistry) LogFactory {
	formatter := &logrus.TextFormatter{DisableTimestamp: true}
	return func(subsystem string) Log {
		return &LogrusLogger{Entry: newRegisteredEntry(logRegistry, subsystem, os.Stdout, formatter)}
	}
}

func newRegisteredEntry(logRegistry *LogRegistry, subsystem string, out io.Writer, formatter logrus.Formatter) *logrus.Entry {
	log := &logrus.Logger{
		Out:       out,
		Formatter: formatter,
		Hooks:     make(logrus.LevelHooks),
		Level:     logRegistry.GetLogLevel(subsystem),
		ExitFunc:  os.Exit,
	}
	logRegistry.RegisterLogger(subsystem, log)
	return logrus.NewEntry(log)
}

func makeFormatter(out io.Writer, format LogFormat) logrus.Formatter {
	if format == LogFormatAuto || format == "" {
		format = LogFormatJSON
		if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = LogFormatText
		}
	}
	if format == LogFormatText {
		return &logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
			DisableQuote:    true,
		}
	}
	return &logrus.JSONFormatter{TimestampFormat: timestampFormat}
}

// NoOpLogFactory is a LogFactory for tests and other places where output isn't wanted.
func NoOpLogFactory(subsystem string) Log {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return &LogrusLogger{Entry: logrus.NewEntry(log)}
}
