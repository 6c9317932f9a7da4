// Package main provides the derpd CLI entrypoint: the process that runs
// one rank of a derp overlay for the lifetime of the job tree.
//
// Usage:
//
//	derpd serve --config <path> [--socket <path>]
//
// Only the rank configured as the topology root opens a control socket;
// non-root ranks run the reactor loop and otherwise only talk to their
// parent/children over the configured transport.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/derp/eventlog"
	"github.com/pithecene-io/derp/exec"
	"github.com/pithecene-io/derp/rankctx"
	"github.com/pithecene-io/derp/rconfig"
	"github.com/pithecene-io/derp/transport"
	"github.com/pithecene-io/derp/types"
)

// exitConfigError is returned for configuration/CLI validation failures,
// distinct from a runtime failure inside the reactor loop.
const exitConfigError = 2

func main() {
	app := &cli.App{
		Name:           "derpd",
		Usage:          "run one rank of a derp job tree",
		Version:        types.Version,
		Commands:       []*cli.Command{serveCommand()},
		ExitErrHandler: exitErrHandler,
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(exitConfigError)
	}
}

func exitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitConfigError)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "start this rank and, if root, its derpctl control socket",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Usage:    "path to the rank's YAML config file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "socket",
				Usage: "unix socket path for the control channel (root only)",
				Value: "/tmp/derpd.sock",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := rconfig.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to load config: %v", err), exitConfigError)
	}

	tree, err := cfg.Topology.Tree()
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid topology: %v", err), exitConfigError)
	}

	tr, err := buildTransport(cfg.Transport)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to build transport: %v", err), exitConfigError)
	}

	rctx, err := rankctx.New(cfg.Self, tree, tr)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to assemble rank context: %v", err), exitConfigError)
	}

	sink, err := buildEventSink(cfg.EventLog)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to build eventlog sink: %v", err), exitConfigError)
	}

	eng := exec.New(rctx, nil)
	eng.ShellTemplate = cfg.Shell.ToShellConfig()
	eng.EventSink = sink
	if err := eng.Register(); err != nil {
		return cli.Exit(fmt.Sprintf("failed to register exec handlers: %v", err), exitConfigError)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		rctx.Run(eng.Handlers())
		close(done)
	}()

	var srv *controlServer
	if tree.IsRoot(cfg.Self) {
		srv, err = listenControl(rctx, c.String("socket"))
		if err != nil {
			rctx.Stop()
			return cli.Exit(fmt.Sprintf("failed to open control socket: %v", err), exitConfigError)
		}
		rctx.Log.Info("control socket open", map[string]any{"path": c.String("socket")})
		go srv.Serve()
	}

	<-ctx.Done()
	rctx.Log.Info("shutting down", map[string]any{})
	if srv != nil {
		srv.Close()
	}
	rctx.Stop()
	<-done
	return nil
}

func buildTransport(cfg rconfig.TransportConfig) (transport.Transport, error) {
	switch cfg.Kind {
	case "", "inproc":
		return transport.NewInproc(), nil
	case "redis":
		return transport.NewRedis(cfg.Redis.ToRedisConfig())
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
}

func buildEventSink(cfg rconfig.EventLogConfig) (eventlog.Sink, error) {
	lcfg := eventlog.LodeConfig{Dataset: cfg.Dataset, Source: cfg.Source, Category: cfg.Category}
	switch cfg.Kind {
	case "":
		return eventlog.NopSink{}, nil
	case "memory":
		return eventlog.NewMemorySink(), nil
	case "fs":
		return eventlog.NewFSLodeSink(lcfg, cfg.Root)
	case "s3":
		return eventlog.NewS3LodeSink(lcfg, eventlog.S3Config{
			Bucket:       cfg.S3.Bucket,
			Prefix:       cfg.S3.Prefix,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown eventlog kind %q", cfg.Kind)
	}
}
