package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/taskstream/core"
	"pkt.systems/taskstream/internal/appconfig"
	"pkt.systems/taskstream/internal/enginegrpc"
	"pkt.systems/taskstream/internal/format"
	"pkt.systems/taskstream/internal/logx"
	"pkt.systems/taskstream/schema"
)

type runOptions struct {
	cfgPath       string
	address       string
	mode          string
	clientID      string
	dialTimeout   time.Duration
	maxRequests   int
	noAutoApprove bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run [flags] <task text|->",
		Short: "Create a task and stream its messages until it completes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(cmd, opts)
			if err != nil {
				return err
			}
			text, err := taskText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			_, err = runTask(ctx, cfg, text, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return err
		},
	}
	cmd.Flags().StringVarP(&opts.cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&opts.address, "addr", "", "engine address (overrides config)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "intended mode: plan or act (overrides config)")
	cmd.Flags().StringVar(&opts.clientID, "client-id", "", "client-id metadata (overrides config)")
	cmd.Flags().DurationVar(&opts.dialTimeout, "dial-timeout", 0, "engine connect timeout in whole seconds, 0 skips the check (overrides config)")
	cmd.Flags().IntVar(&opts.maxRequests, "max-requests", 0, "auto-approval request limit (overrides config)")
	cmd.Flags().BoolVar(&opts.noAutoApprove, "no-auto-approve", false, "disable auto-approval")
	return cmd
}

func loadRunConfig(cmd *cobra.Command, opts runOptions) (appconfig.Config, error) {
	cfg, err := appconfig.Load(opts.cfgPath)
	if err != nil {
		return appconfig.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Engine.Address = opts.address
	}
	if flags.Changed("mode") {
		cfg.Task.Mode = opts.mode
	}
	if flags.Changed("client-id") {
		cfg.Engine.ClientID = opts.clientID
	}
	if flags.Changed("dial-timeout") {
		if opts.dialTimeout < 0 || opts.dialTimeout%time.Second != 0 {
			return appconfig.Config{}, fmt.Errorf("--dial-timeout must be a whole number of seconds, got %s", opts.dialTimeout)
		}
		cfg.Engine.DialTimeoutSeconds = int(opts.dialTimeout / time.Second)
	}
	if flags.Changed("max-requests") {
		cfg.Task.AutoApproval.MaxRequests = opts.maxRequests
	}
	if opts.noAutoApprove {
		cfg.Task.AutoApproval.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return appconfig.Config{}, err
	}
	return cfg, nil
}

func taskText(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read task from stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.TrimSpace(strings.Join(args, " ")), nil
}

func engineConfig(cfg appconfig.EngineConfig) enginegrpc.Config {
	return enginegrpc.Config{
		Address:           cfg.Address,
		ClientID:          cfg.ClientID,
		DialTimeout:       time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		MaxRecvBytes:      cfg.MaxRecvMB * 1024 * 1024,
		KeepaliveInterval: time.Duration(cfg.KeepaliveSeconds) * time.Second,
	}
}

func runTask(ctx context.Context, cfg appconfig.Config, text string, stdout, stderr io.Writer) (core.Outcome, error) {
	logger := pslog.Ctx(ctx)
	settings, err := cfg.Task.Settings()
	if err != nil {
		return core.Outcome{}, err
	}
	client, err := enginegrpc.Dial(ctx, engineConfig(cfg.Engine))
	if err != nil {
		return core.Outcome{}, err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			logger.Debug("engine connection close failed", "err", cerr)
		}
	}()
	logger = logx.WithClient(ctx, client.ClientID())
	ctx = logx.ContextWithClient(pslog.ContextWithLogger(ctx, logger), client.ClientID())

	session, err := core.NewLauncher(client).Launch(ctx, text, settings)
	if err != nil {
		return core.Outcome{}, err
	}
	sink := newWriterSink(stdout, stderr)
	outcome, err := core.NewLoop(client, sink).Run(ctx, session)
	if err != nil {
		return outcome, err
	}
	if sink.writeErr() != nil {
		return outcome, sink.writeErr()
	}
	logger.Info("task finished",
		"task", session.ID,
		"status", outcome.Status,
		"snapshots", outcome.Snapshots,
		"displayed", outcome.Displayed,
		"toggles", outcome.Toggles,
		"decode_errors", outcome.DecodeErrors,
	)
	if outcome.Status != core.StatusCompleted {
		logger.Warn("task ended without a completion result", "status", outcome.Status)
	}
	return outcome, nil
}

// writerSink renders surfaced messages as plain text.
type writerSink struct {
	out      io.Writer
	errOut   io.Writer
	renderer *format.PlainRenderer

	mu  sync.Mutex
	err error
}

func newWriterSink(out, errOut io.Writer) *writerSink {
	return &writerSink{out: out, errOut: errOut, renderer: format.NewPlainRenderer()}
}

func (s *writerSink) Display(_ context.Context, msg schema.Message) {
	s.write(s.out, s.renderer.FormatMessage(msg))
}

func (s *writerSink) Complete(_ context.Context, msg schema.Message) {
	s.write(s.out, s.renderer.FormatCompletion(msg))
}

func (s *writerSink) Report(_ context.Context, err error) {
	s.write(s.errOut, s.renderer.FormatError(err))
}

func (s *writerSink) write(w io.Writer, lines []string) {
	if w == nil || len(lines) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			s.err = fmt.Errorf("write output: %w", err)
			return
		}
	}
}

func (s *writerSink) writeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
