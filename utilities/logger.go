package utilities

import (
	"path"
	"runtime"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// InitLogger configures the process-wide logrus instance. Unknown levels
// fall back to info rather than failing startup. Caller reporting is
// expensive, so it is only switched on for debug runs.
func InitLogger(logLevel string) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Warnf("unknown log level %q, using info", logLevel)
		level = log.InfoLevel
	}

	formatter := &log.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
	}

	if level == log.DebugLevel {
		log.SetReportCaller(true)
		formatter.CallerPrettyfier = func(frame *runtime.Frame) (string, string) {
			return "", path.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
		}
	}

	log.SetFormatter(formatter)
	log.SetLevel(level)
}

// NewLogger returns an entry tagged with the calling function, so every
// line can be traced back to its handler.
func NewLogger(fn string) *log.Entry {
	return log.WithField("fn", fn+"()")
}

// NewLoggerWithFields is NewLogger plus arbitrary context fields.
func NewLoggerWithFields(fn string, fields map[string]interface{}) *log.Entry {
	f := log.Fields(fields)
	f["fn"] = fn + "()"
	return log.WithFields(f)
}
