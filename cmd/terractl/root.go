package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/terra/internal/config"
	"github.com/JaimeStill/terra/internal/infrastructure"
	"github.com/JaimeStill/terra/internal/worker"
)

type options struct {
	timeout time.Duration
}

// session is the worker wiring for one command invocation.
type session struct {
	infra  *infrastructure.Infrastructure
	worker *worker.Worker
}

func openSession() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	w, err := worker.New(cfg, infra)
	if err != nil {
		infra.Database.Connection().Close()
		return nil, err
	}

	return &session{infra: infra, worker: w}, nil
}

func (s *session) Close() {
	if s.worker.Publisher != nil {
		s.worker.Publisher.Close()
	}
	s.infra.Database.Connection().Close()
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "terractl",
		Short:         "Operate the Terra cleanup verification service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "Operation timeout")

	root.AddCommand(
		newVerifyCmd(opts),
		newReprocessCmd(opts),
		newRetentionCmd(opts),
		newRollupCmd(opts),
		newRunJobCmd(opts),
	)
	return root
}

// withSession opens a session, bounds ctx by the configured timeout and
// runs fn.
func withSession(cmd *cobra.Command, opts *options, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	return fn(ctx, s)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
