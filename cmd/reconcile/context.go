package main

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/timmy/catalogsync/internal/app"
	"github.com/timmy/catalogsync/internal/config"
	"github.com/timmy/catalogsync/internal/logger"
)

type commandContext struct {
	configFlag *string

	appOnce sync.Once
	app     *app.App
	appErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureApp loads config and wires the pipelines once per invocation.
func (c *commandContext) ensureApp(ctx context.Context) (*app.App, error) {
	c.appOnce.Do(func() {
		logger.SetDefaultLogger(logger.NewDefault())

		path := os.Getenv("CONFIG_PATH")
		if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.appErr = err
			return
		}
		c.app, c.appErr = app.New(logger.SetComponent(ctx, "cli"), cfg)
	})
	return c.app, c.appErr
}

func (c *commandContext) close() error {
	defer logger.Sync()
	if c.app == nil {
		return nil
	}
	return c.app.Close()
}
