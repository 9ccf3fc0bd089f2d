package logger

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	defaultLogLevel = logrus.InfoLevel
	// wildcardSubsystem sets the level for every subsystem without a level of its own.
	wildcardSubsystem = "*"
)

var levelsByName = map[string]logrus.Level{
	"trace":   logrus.TraceLevel,
	"debug":   logrus.DebugLevel,
	"info":    logrus.InfoLevel,
	"warning": logrus.WarnLevel,
	"error":   logrus.ErrorLevel,
	"fatal":   logrus.FatalLevel,
	"panic":   logrus.PanicLevel,
}

// LogLevelConfig is a comma separated list of subsystem=level pairs, e.g. "AutopinService=debug,*=warning".
type LogLevelConfig string

// LogRegistry tracks the configured level of each subsystem and the loggers created for it, so levels
// can be changed while the server runs.
type LogRegistry struct {
	mu      sync.RWMutex
	levels  map[string]logrus.Level
	loggers map[string]*logrus.Logger
}

// ListLogLevels returns the valid level names, quoted and comma separated.
func ListLogLevels() string {
	var names []string
	for name := range levelsByName {
		names = append(names, fmt.Sprintf("%q", name))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func NewLogRegistry(config LogLevelConfig) (*LogRegistry, error) {
	levels, err := parseLogLevels(config)
	if err != nil {
		return nil, err
	}
	return &LogRegistry{levels: levels, loggers: make(map[string]*logrus.Logger)}, nil
}

func parseLogLevels(config LogLevelConfig) (map[string]logrus.Level, error) {
	levels := make(map[string]logrus.Level)
	for _, pair := range strings.Split(string(config), ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		subsystem, name, found := strings.Cut(pair, "=")
		subsystem = strings.TrimSpace(subsystem)
		if !found || subsystem == "" {
			return nil, fmt.Errorf("error log level %q must be in the form subsystem=level", pair)
		}
		level, ok := levelsByName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("error unknown log level %q for %s (expected one of %s)", name, subsystem, ListLogLevels())
		}
		levels[subsystem] = level
	}
	return levels, nil
}

// GetLogLevel returns the level configured for subsystem, falling back to the wildcard level and then to info.
func (r *LogRegistry) GetLogLevel(subsystem string) logrus.Level {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if level, ok := r.levels[subsystem]; ok {
		return level
	}
	if level, ok := r.levels[wildcardSubsystem]; ok {
		return level
	}
	return defaultLogLevel
}

func (r *LogRegistry) RegisterLogger(subsystem string, logger *logrus.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loggers[subsystem] = logger
}

// SetLogLevel changes the level of the subsystem, including any logger already registered for it.
func (r *LogRegistry) SetLogLevel(subsystem string, level logrus.Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels[subsystem] = level
	if logger, ok := r.loggers[subsystem]; ok {
		logger.SetLevel(level)
	}
}
