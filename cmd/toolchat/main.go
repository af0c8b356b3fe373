// Command toolchat is a terminal chat client for the tool-calling agent.
//
// Usage:
//
//	toolchat [-config toolchat.yaml] [-thread ID] [-message TEXT]
//	toolchat -list
//	toolchat -history ID
//	toolchat -clear
//	toolchat -trace ...
//
// Without -message an interactive session starts. Inside the session
// /new, /threads, /switch ID, /history and /quit are available.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/hupe1980/toolchat"
	"github.com/hupe1980/toolchat/config"
	"github.com/hupe1980/toolchat/engine"
	"github.com/hupe1980/toolchat/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "toolchat:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("TOOLCHAT_CONFIG"), "Path to a YAML config file")
	threadID := flag.String("thread", "", "Resume this thread (default: new thread)")
	message := flag.String("message", "", "Send a single message and exit")
	list := flag.Bool("list", false, "List persisted threads and exit")
	history := flag.String("history", "", "Print the history of a thread and exit")
	clearAll := flag.Bool("clear", false, "Delete all persisted threads and exit")
	trace := flag.Bool("trace", false, "Log every engine lifecycle callback")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(cfg.Log.LoggerConfig(os.Stderr))

	store, closeStore, err := cfg.Store.OpenStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("toolchat.store.close_failed", "error", err.Error())
		}
	}()

	gateway, err := cfg.Provider.NewModel()
	if err != nil {
		return err
	}

	var callbacks *engine.CallbackManager
	if *trace {
		callbacks = traceCallbacks(logger)
	}

	chat, err := toolchat.New(gateway, func(o *toolchat.Options) {
		o.EngineConfig = cfg.Engine.Config()
		o.Store = store
		o.Logger = logger
		o.Builtin = append(o.Builtin, cfg.Tools.BuiltinOptions())
		o.Callbacks = callbacks
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	cli := newCLI(chat, os.Stdout)

	switch {
	case *list:
		return cli.listThreads(ctx)
	case *history != "":
		return cli.printHistory(ctx, *history)
	case *clearAll:
		return cli.clearThreads(ctx)
	}

	if *threadID != "" {
		cli.threadID = *threadID
	}

	if *message != "" {
		return cli.send(ctx, *message)
	}

	logger.Info("toolchat.session.start", "provider", cfg.Provider.Name, "model", gateway.Info().Name, "store", cfg.Store.Kind)
	return cli.interactive(ctx, os.Stdin)
}

// traceCallbacks logs every lifecycle point of a run.
func traceCallbacks(logger logging.Logger) *engine.CallbackManager {
	cbs := engine.NewCallbackManager()
	for _, typ := range []engine.CallbackType{
		engine.CallbackBeforeRun,
		engine.CallbackBeforeModel,
		engine.CallbackAfterModel,
		engine.CallbackBeforeTool,
		engine.CallbackAfterTool,
		engine.CallbackAfterRun,
		engine.CallbackOnError,
	} {
		cbs.RegisterCallback(engine.NewLoggingCallback(typ, logger))
	}
	return cbs
}
