package common

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// --------------------------------------------------------------------------
// Custom Loggers (implement dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// levelGate holds the level of one named logger. Filtering happens here, the
// backends are configured to let everything through.
type levelGate struct {
	level atomic.Int32
}

func (g *levelGate) SetLevel(level logger.LogLevel) {
	g.level.Store(int32(level))
}

func (g *levelGate) enabled(level logger.LogLevel) bool {
	return logger.LogLevel(g.level.Load()) >= level
}

// zapLogger writes through a named zap logger
type zapLogger struct {
	levelGate
	l *zap.SugaredLogger
}

func (z *zapLogger) Debugf(format string, args ...interface{}) {
	if z.enabled(logger.DEBUG) {
		z.l.Debugf(format, args...)
	}
}

func (z *zapLogger) Infof(format string, args ...interface{}) {
	if z.enabled(logger.INFO) {
		z.l.Infof(format, args...)
	}
}

func (z *zapLogger) Warningf(format string, args ...interface{}) {
	if z.enabled(logger.WARNING) {
		z.l.Warnf(format, args...)
	}
}

func (z *zapLogger) Errorf(format string, args ...interface{}) {
	if z.enabled(logger.ERROR) {
		z.l.Errorf(format, args...)
	}
}

func (z *zapLogger) Panicf(format string, args ...interface{}) {
	z.l.Panicf(format, args...)
}

// logrusLogger writes through a logrus entry carrying the package name
type logrusLogger struct {
	levelGate
	e *logrus.Entry
}

func (l *logrusLogger) Debugf(format string, args ...interface{}) {
	if l.enabled(logger.DEBUG) {
		l.e.Debugf(format, args...)
	}
}

func (l *logrusLogger) Infof(format string, args ...interface{}) {
	if l.enabled(logger.INFO) {
		l.e.Infof(format, args...)
	}
}

func (l *logrusLogger) Warningf(format string, args ...interface{}) {
	if l.enabled(logger.WARNING) {
		l.e.Warnf(format, args...)
	}
}

func (l *logrusLogger) Errorf(format string, args ...interface{}) {
	if l.enabled(logger.ERROR) {
		l.e.Errorf(format, args...)
	}
}

func (l *logrusLogger) Panicf(format string, args ...interface{}) {
	l.e.Panicf(format, args...)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// NewLoggerFactory creates a dragonboat logger.Factory for the given backend
// (zap, logrus) and format (console/text, json). Empty values select zap and
// console. New loggers start at level INFO.
func NewLoggerFactory(backend, format string) (logger.Factory, error) {
	switch strings.ToLower(backend) {
	case "", "zap":
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		var enc zapcore.Encoder
		switch strings.ToLower(format) {
		case "", "console", "text":
			encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
			enc = zapcore.NewConsoleEncoder(encCfg)
		case "json":
			enc = zapcore.NewJSONEncoder(encCfg)
		default:
			return nil, fmt.Errorf("invalid log format: %s. must be one of console, json", format)
		}
		base := zap.New(zapcore.NewCore(enc, zapcore.Lock(os.Stdout), zapcore.DebugLevel))
		return func(pkgName string) logger.ILogger {
			l := &zapLogger{l: base.Named(pkgName).Sugar()}
			l.SetLevel(logger.INFO)
			return l
		}, nil

	case "logrus":
		base := logrus.New()
		base.SetOutput(os.Stdout)
		base.SetLevel(logrus.DebugLevel)
		switch strings.ToLower(format) {
		case "", "console", "text":
			base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		case "json":
			base.SetFormatter(&logrus.JSONFormatter{})
		default:
			return nil, fmt.Errorf("invalid log format: %s. must be one of text, json", format)
		}
		return func(pkgName string) logger.ILogger {
			l := &logrusLogger{e: base.WithField("pkg", pkgName)}
			l.SetLevel(logger.INFO)
			return l
		}, nil

	default:
		return nil, fmt.Errorf("invalid log backend: %s. must be one of zap, logrus", backend)
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info", "":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	case "critical":
		return logger.CRITICAL, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error, critical", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// loggerNames are all loggers of dragonboat and dChain
var loggerNames = []string{
	// dragonboat
	"raft", "raftdb", "rsm", "transport", "dragonboat", "grpc", "util", "logdb", "config",
	// dChain
	"store", "proxy", "rpc", "transport/rpc", "lockmgr", "management",
}

var factoryOnce sync.Once

// InitLoggers installs the logger factory for the given backend and format and
// sets the level of all loggers. The factory is installed by the first call
// only, later calls just change the level.
func InitLoggers(backend, format, level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}
	factory, err := NewLoggerFactory(backend, format)
	if err != nil {
		return err
	}

	// Set as the global logger factory for Dragonboat
	factoryOnce.Do(func() { logger.SetLoggerFactory(factory) })

	SetLogLevel(lvl)
	return nil
}

// SetLogLevel sets the level of all dragonboat and dChain loggers
func SetLogLevel(level logger.LogLevel) {
	for _, name := range loggerNames {
		logger.GetLogger(name).SetLevel(level)
	}
}
