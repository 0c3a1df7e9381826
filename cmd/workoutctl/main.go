package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	shutdown()
	stop()

	if err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

// shutdown flushes metrics and releases the engine built for the command.
func shutdown() {
	if engine == nil {
		return
	}
	if metricsFile != "" {
		if err := engine.writeMetrics(metricsFile); err != nil {
			logrus.WithError(err).WithField("file", metricsFile).Warn("failed to write metrics")
		}
	}
	engine.Close()
	engine = nil
}
