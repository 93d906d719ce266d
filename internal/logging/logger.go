package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"lethe_console/internal/config"
)

// Enterprise логгер поверх logrus
type EnterpriseLogger struct {
	log     *logrus.Logger
	file    *os.File
	verbose bool
}

func NewEnterpriseLogger(cfg *config.Config, verbose bool) (*EnterpriseLogger, error) {
	l := &EnterpriseLogger{
		log:     logrus.New(),
		verbose: verbose,
	}

	level, err := parseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if verbose && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	l.log.SetLevel(level)

	if cfg.Logging.Structured {
		l.log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		l.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}

	// Без файла пишем в stderr
	l.log.SetOutput(os.Stderr)

	// Автоматическое создание директории для логов
	if cfg.Logging.File != "" {
		logDir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			// Если не можем создать директорию, остаёмся на stderr
			l.log.WithError(err).Warnf("Не удалось создать директорию логов %s, логи будут выводиться в stderr", logDir)
			return l, nil
		}

		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			l.log.WithError(err).Warnf("Не удалось открыть файл логов %s, логи будут выводиться в stderr", cfg.Logging.File)
			return l, nil
		}
		l.file = f

		if verbose {
			l.log.SetOutput(io.MultiWriter(f, os.Stderr))
		} else {
			l.log.SetOutput(f)
		}
	}

	return l, nil
}

// NewDiscardLogger возвращает логгер, который ничего не пишет
func NewDiscardLogger() *EnterpriseLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &EnterpriseLogger{log: l}
}

// NewWithOutput создаёт логгер с произвольным выводом
func NewWithOutput(w io.Writer, level string) *EnterpriseLogger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := parseLevel(level); err == nil {
		l.SetLevel(lvl)
	}
	return &EnterpriseLogger{log: l}
}

// Log пишет запись; fields задаются парами ключ-значение
func (l *EnterpriseLogger) Log(level, message string, fields ...interface{}) {
	entry := l.log.WithFields(toFields(fields))

	switch level {
	case "DEBUG":
		entry.Debug(message)
	case "INFO":
		entry.Info(message)
	case "WARN":
		entry.Warn(message)
	case "ERROR":
		entry.Error(message)
	case "FATAL":
		// Без os.Exit: решение о завершении принимает вызывающий код
		entry.Log(logrus.FatalLevel, message)
	default:
		entry.Info(message)
	}
}

// Entry возвращает logrus entry для WithFields/WithError
func (l *EnterpriseLogger) Entry() *logrus.Entry {
	return logrus.NewEntry(l.log)
}

// Writer возвращает writer уровня INFO (для access логов HTTP)
func (l *EnterpriseLogger) Writer() *io.PipeWriter {
	return l.log.WriterLevel(logrus.InfoLevel)
}

func (l *EnterpriseLogger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func parseLevel(level string) (logrus.Level, error) {
	switch level {
	case "DEBUG":
		return logrus.DebugLevel, nil
	case "INFO", "":
		return logrus.InfoLevel, nil
	case "WARN":
		return logrus.WarnLevel, nil
	case "ERROR":
		return logrus.ErrorLevel, nil
	case "FATAL":
		return logrus.FatalLevel, nil
	}
	return logrus.InfoLevel, fmt.Errorf("invalid log level: %s", level)
}

func toFields(kv []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 >= len(kv) {
			fields[key] = "(MISSING)"
			break
		}
		if err, ok := kv[i+1].(error); ok {
			fields[key] = err.Error()
			continue
		}
		fields[key] = kv[i+1]
	}
	return fields
}
