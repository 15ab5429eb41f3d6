// commands.go defines the send, flush, queue and rum commands.

package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/strongdm/raygun4go/pkg/raygun"
	"github.com/strongdm/raygun4go/pkg/raygun/client"
	"github.com/strongdm/raygun4go/pkg/raygun/queue"
	"github.com/strongdm/raygun4go/pkg/raygun/rum"
)

func newSendCmd(opts *rootOptions) *cobra.Command {
	var (
		message   string
		className string
		tags      []string
		data      map[string]string
		user      string
	)
	short := "Send a test crash report"
	cmd := &cobra.Command{
		Use:   "send",
		Short: short,
		Long: short + `.
The report is sent synchronously, bounded by send_timeout. When the collector
cannot be reached it is stored in the offline queue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			defer c.Close()

			if user != "" {
				c.SetUserIdentifier(cmd.Context(), user)
			}
			customData := make(map[string]any, len(data))
			for k, v := range data {
				customData[k] = v
			}
			exc := &raygun.Exception{Type: className, Message: message}
			outcome := c.SendAndWait(exc, tags, customData)
			fmt.Fprintln(opts.out, outcome)
			if outcome == raygun.Dropped {
				return errors.New("crash report was dropped")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "Test crash report", "error message")
	cmd.Flags().StringVar(&className, "class", "raygun4go.TestException", "error class name")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag to attach (repeatable)")
	cmd.Flags().StringToStringVar(&data, "data", nil, "custom data as key=value pairs")
	cmd.Flags().StringVar(&user, "user", "", "user identifier (default anonymous)")
	cmd.Flags().SortFlags = false
	return cmd
}

func newFlushCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Resend crash reports stored in the offline queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			flushErr := c.Enable(ctx)
			n, err := c.QueueLen(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(opts.out, "%d crash report(s) remaining\n", n)
			return flushErr
		},
	}
}

func newQueueCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the offline queue",
	}
	cmd.AddCommand(newQueueListCmd(opts))
	return cmd
}

func newQueueListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List stored crash reports in sequence order",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.settings()
			if err != nil {
				return err
			}
			if s.OfflineStorage.Dir == "" {
				return errors.New("no queue directory: set offline_storage.dir or --queue-dir")
			}
			return listQueue(cmd.Context(), queue.NewFileStore(s.OfflineStorage.Dir), opts)
		},
	}
}

func listQueue(ctx context.Context, store queue.Store, opts *rootOptions) error {
	seqs, err := store.List(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(opts.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tOCCURRED\tCLASS\tMESSAGE")
	for _, seq := range seqs {
		payload, err := store.Read(ctx, seq)
		if err != nil {
			fmt.Fprintf(w, "%d\t-\t-\t<unreadable: %v>\n", seq, err)
			continue
		}
		var report raygun.CrashReport
		if err := raygun.Unmarshal(payload, &report); err != nil || report.Details == nil {
			fmt.Fprintf(w, "%d\t-\t-\t<invalid payload>\n", seq)
			continue
		}
		className, message := "-", "-"
		if e := report.Details.Error; e != nil {
			className, message = e.ClassName, e.Message
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", seq, report.OccurredOn.Format(time.RFC3339), className, message)
	}
	return w.Flush()
}

func newRUMCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rum",
		Short: "Emit real user monitoring events",
	}
	cmd.AddCommand(newRUMTimingCmd(opts), newRUMSessionCmd(opts))
	return cmd
}

func newRUMTimingCmd(opts *rootOptions) *cobra.Command {
	var (
		timingType string
		name       string
		duration   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "timing",
		Short: "Record one timing in a fresh session",
		RunE: func(cmd *cobra.Command, args []string) error {
			var typ rum.TimingType
			if err := typ.UnmarshalText([]byte(timingType)); err != nil {
				return errors.Wrap(err, `--type must be "p" (view loaded) or "n" (network call)`)
			}
			if name == "" {
				return errors.New("--name is required")
			}
			return withRUM(cmd.Context(), opts, func(ctx context.Context, c *client.Client) {
				c.RecordTiming(ctx, typ, name, duration.Milliseconds())
				c.EndSession(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&timingType, "type", "p", `timing type: "p" (view loaded) or "n" (network call)`)
	cmd.Flags().StringVar(&name, "name", "", "view or request name")
	cmd.Flags().DurationVar(&duration, "duration", 0, "measured duration")
	return cmd
}

func newRUMSessionCmd(opts *rootOptions) *cobra.Command {
	var (
		user   string
		length time.Duration
	)
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start and end one session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRUM(cmd.Context(), opts, func(ctx context.Context, c *client.Client) {
				if user != "" {
					c.SetUserIdentifier(ctx, user)
				}
				c.StartSession(ctx)
				fmt.Fprintln(opts.out, c.SessionID())
				if length > 0 {
					select {
					case <-ctx.Done():
					case <-time.After(length):
					}
				}
				c.EndSession(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user identifier (default anonymous)")
	cmd.Flags().DurationVar(&length, "length", 0, "time to keep the session open")
	return cmd
}

// withRUM runs fn against a fresh client and waits for the emitted events
// to be delivered.
func withRUM(ctx context.Context, opts *rootOptions, fn func(context.Context, *client.Client)) error {
	c, err := opts.newClient()
	if err != nil {
		return err
	}
	settings := c.Settings()
	if !settings.HasAPIKey() {
		_ = c.Close()
		return raygun.ErrMissingAPIKey
	}
	fn(ctx, c)
	return c.Close()
}
