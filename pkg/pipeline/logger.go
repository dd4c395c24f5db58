package pipeline

import (
	"io"
	"os"

	"github.com/carrotexpress/backoffice/pkg/reconerr"
	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger: text by default, JSON when asked, Info level
// unless debug is set.
func NewLogger(debug, json bool, w io.Writer) *logrus.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := logrus.New()
	logger.SetOutput(w)
	if json {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	}
	logger.SetLevel(logrus.InfoLevel)
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// LogError logs err with the pipeline, stage and remediation hint attached.
func LogError(logger logrus.FieldLogger, pipelineName, stage string, data any, err error) {
	fields := logrus.Fields{
		"pipeline":    pipelineName,
		"stage":       stage,
		"kind":        reconerr.KindOf(err).String(),
		"remediation": reconerr.Remediation(err),
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}

// progressHook forwards log entries to a worker's event channel.
type progressHook struct {
	events chan<- Event
}

func (h *progressHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *progressHook) Fire(entry *logrus.Entry) error {
	h.events <- Progress{Level: entry.Level, Message: entry.Message, Fields: copyFields(entry.Data)}
	return nil
}

func copyFields(data logrus.Fields) map[string]interface{} {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

// runLogger clones base's output settings into a fresh logger so hooks stay per run.
func runLogger(base *logrus.Logger, hooks ...logrus.Hook) *logrus.Logger {
	logger := logrus.New()
	if base != nil {
		logger.SetOutput(base.Out)
		logger.SetFormatter(base.Formatter)
		logger.SetLevel(base.GetLevel())
	} else {
		logger.SetOutput(io.Discard)
	}
	for _, h := range hooks {
		logger.AddHook(h)
	}
	return logger
}
