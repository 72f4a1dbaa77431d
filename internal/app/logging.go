package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"boardfx/logging"
	loggingSinks "boardfx/logging/sinks"
)

// NewRouter builds the event router for cfg. The returned close function
// drains the router and releases any files it opened.
func NewRouter(cfg LogConfig, stdout io.Writer, fields map[string]any) (*logging.Router, func(context.Context) error, error) {
	logConfig := logging.DefaultConfig()
	if len(cfg.Sinks) > 0 {
		logConfig.EnabledSinks = cfg.Sinks
	}
	if cfg.BufferSize > 0 {
		logConfig.BufferSize = cfg.BufferSize
	}
	severity, ok := logging.ParseSeverity(cfg.Level)
	if !ok {
		return nil, nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}
	logConfig.MinimumSeverity = severity
	logConfig.JSON.FilePath = cfg.JSONPath
	logConfig.Fields = fields

	var sinks []logging.NamedSink
	var files []*os.File
	for _, name := range logConfig.EnabledSinks {
		switch name {
		case "console":
			sinks = append(sinks, logging.NamedSink{Name: name, Sink: loggingSinks.NewConsole(stdout)})
		case "json":
			if logConfig.JSON.FilePath == "" {
				return nil, nil, errors.New("json sink enabled without a file path")
			}
			f, err := os.OpenFile(logConfig.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, nil, fmt.Errorf("open json sink: %w", err)
			}
			files = append(files, f)
			sinks = append(sinks, logging.NamedSink{Name: name, Sink: loggingSinks.NewJSON(f, logConfig.JSON.FlushInterval)})
		default:
			for _, f := range files {
				f.Close()
			}
			return nil, nil, fmt.Errorf("unknown log sink %q", name)
		}
	}

	router := logging.NewRouter(logging.ClockFunc(time.Now), logConfig, sinks)
	closeFn := func(ctx context.Context) error {
		err := router.Close(ctx)
		for _, f := range files {
			err = errors.Join(err, f.Close())
		}
		return err
	}
	return router, closeFn, nil
}
