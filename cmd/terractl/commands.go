package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var errNoBroker = errors.New("no broker configured")

func parseID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid submission id %q: %w", arg, err)
	}
	return id, nil
}

func newVerifyCmd(opts *options) *cobra.Command {
	var async bool

	cmd := &cobra.Command{
		Use:   "verify <submission-id>",
		Short: "Run the verification pipeline once for a pending submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				if async {
					if s.worker.Publisher == nil {
						return errNoBroker
					}
					if err := s.worker.Publisher.NotifyCreated(ctx, id); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "submission %s published for verification\n", id)
					return nil
				}

				p, err := s.worker.Pipeline(ctx)
				if err != nil {
					return err
				}
				out, err := p.Process(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}

	cmd.Flags().BoolVar(&async, "async", false, "Publish a submission-created event instead of verifying inline")
	return cmd
}

func newReprocessCmd(opts *options) *cobra.Command {
	var (
		by  string
		run bool
	)

	cmd := &cobra.Command{
		Use:   "reprocess <submission-id>",
		Short: "Move an errored submission back to pending and trigger verification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				if _, err := s.worker.Submissions.Reprocess(ctx, id, by); err != nil {
					return err
				}

				if run {
					p, err := s.worker.Pipeline(ctx)
					if err != nil {
						return err
					}
					out, err := p.Process(ctx, id)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), out)
				}

				if n := s.worker.Notifier(); n != nil {
					if err := n.NotifyReprocess(ctx, id); err != nil {
						return fmt.Errorf("submission %s reset but notification failed: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "submission %s queued for reprocessing\n", id)
					return nil
				}

				fmt.Fprintf(cmd.OutOrStdout(), "submission %s reset to pending; no broker configured, run verify to process it\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&by, "by", "terractl", "Operator recorded as reprocessed_by")
	cmd.Flags().BoolVar(&run, "run", false, "Verify inline instead of publishing a reprocess event")
	return cmd
}

func newRetentionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "retention",
		Short: "Purge audit log entries older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				n, err := s.worker.Retention.Run(ctx, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d audit entries\n", n)
				return nil
			})
		},
	}
}

func newRollupCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rollup",
		Short: "Compute and store today's analytics snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				snap, err := s.worker.Rollup.Run(ctx, time.Now())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), snap)
			})
		},
	}
}

func newRunJobCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "run-job <retention|rollup>",
		Short:     "Run a scheduled maintenance job now",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"retention", "rollup"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				if err := s.worker.Scheduler.RunNow(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "job %s finished\n", args[0])
				return nil
			})
		},
	}
}
