package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-push-admin/messaging"
	"github.com/tinywideclouds/go-push-admin/pushadmin"
	"github.com/tinywideclouds/go-push-admin/pushadmin/config"
)

//go:embed local.yaml
var configFile []byte

func main() {
	var (
		token   = flag.String("token", "", "target device registration token")
		topic   = flag.String("topic", "", "target topic name")
		title   = flag.String("title", "", "notification title")
		body    = flag.String("body", "", "notification body")
		data    = flag.String("data", "", "comma separated key=value data pairs")
		dryRun  = flag.Bool("dry-run", false, "validate the message without delivering it")
		usesH2  = flag.Bool("http2", false, "send over a multiplexed session")
		verbose = flag.Bool("v", false, "shorthand for LOG_LEVEL=debug")
	)
	flag.Parse()

	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "pushsend")
	slog.SetDefault(logger)

	ctx := context.Background()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, _ := config.NewConfigFromYaml(&yamlCfg, logger)
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- App Assembly ---
	app, err := pushadmin.New(cfg, nil, logger)
	if err != nil {
		logger.Error("App creation failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = app.Close() }()

	client, err := app.Messaging()
	if err != nil {
		logger.Error("Messaging client creation failed", "err", err)
		os.Exit(1)
	}

	msg := &messaging.Message{
		Token: *token,
		Topic: *topic,
	}
	if *title != "" || *body != "" {
		msg.Notification = &messaging.Notification{Title: *title, Body: *body}
	}
	if *data != "" {
		msg.Data = parseDataPairs(*data)
	}

	messageID, err := sendOne(ctx, client, msg, *dryRun, *usesH2)
	if err != nil {
		logger.Error("Send failed", "err", err)
		os.Exit(1)
	}
	logger.Info("Message accepted", "message_id", messageID, "dry_run", *dryRun)
}

func sendOne(ctx context.Context, client *messaging.Client, msg *messaging.Message, dryRun, usesH2 bool) (string, error) {
	if usesH2 {
		session := messaging.NewSession()
		defer func() { _ = session.Close() }()
		resp, err := client.SendEachWithSession(ctx, session, []*messaging.Message{msg})
		if err != nil {
			return "", err
		}
		sr := resp.Responses[0]
		if !sr.Success {
			return "", sr.Error
		}
		return sr.MessageID, nil
	}
	if dryRun {
		return client.SendDryRun(ctx, msg)
	}
	return client.Send(ctx, msg)
}

func parseDataPairs(raw string) map[string]string {
	pairs := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || k == "" {
			fmt.Fprintf(os.Stderr, "skipping malformed data pair %q\n", part)
			continue
		}
		pairs[k] = v
	}
	return pairs
}
