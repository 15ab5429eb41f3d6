// send.go builds crash reports and hands them to the offline queue.

package client

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/strongdm/raygun4go/pkg/raygun"
)

// SendingEvent is passed to OnSending hooks just before a report is
// serialized. Hooks may modify Report or set Cancel.
type SendingEvent struct {
	Report *raygun.CrashReport
	Cancel bool
}

// GroupingKeyEvent is passed to OnGroupingKey hooks while a report is
// built. Setting Key overrides server-side grouping.
type GroupingKeyEvent struct {
	Err    error
	Report *raygun.CrashReport
	Key    string
}

// OnSending registers a hook run before every crash report is sent. A
// panicking hook is reported as its own crash report and the original send
// continues.
func (c *Client) OnSending(fn func(*SendingEvent)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendingHooks = append(c.sendingHooks, fn)
}

// OnGroupingKey registers a hook that may set a custom grouping key.
func (c *Client) OnGroupingKey(fn func(*GroupingKeyEvent)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groupingHooks = append(c.groupingHooks, fn)
}

// Send reports err. Configured wrapper types are stripped first and each
// remaining error becomes its own report. Tags and custom data attached to
// ctx with raygun.ContextWithTags and raygun.ContextWithData are merged in.
// The result is the worst outcome across those reports. Delivery is bounded
// by ctx.
func (c *Client) Send(ctx context.Context, err error, tags []string, customData map[string]any) raygun.Outcome {
	if err == nil {
		c.logger.Debug("nil error, nothing to send")
		return raygun.Dropped
	}
	if !c.settings.HasAPIKey() {
		c.logger.Warn("api key is not set, crash report not sent", zap.String("class_name", raygun.ClassName(err)))
		return raygun.Dropped
	}

	errs := raygun.StripWrapperErrors(err, c.settings.IsStrippedWrapper)
	reports := make([]*raygun.CrashReport, len(errs))
	var g errgroup.Group
	for i, e := range errs {
		i, e := i, e
		g.Go(func() error {
			reports[i] = c.buildReport(ctx, e, tags, customData)
			return nil
		})
	}
	_ = g.Wait()

	outcomes := make([]raygun.Outcome, 0, len(reports))
	for _, report := range reports {
		outcomes = append(outcomes, c.SendReport(ctx, report))
	}
	return raygun.Worst(outcomes...)
}

// SendAndWait is Send bounded by Settings.SendTimeout.
func (c *Client) SendAndWait(err error, tags []string, customData map[string]any) raygun.Outcome {
	return c.sendWithTimeout(context.Background(), err, tags, customData)
}

func (c *Client) sendWithTimeout(ctx context.Context, err error, tags []string, customData map[string]any) raygun.Outcome {
	ctx, cancel := context.WithTimeout(ctx, c.settings.SendTimeout)
	defer cancel()
	return c.Send(ctx, err, tags, customData)
}

// SendInBackground reports err without blocking the caller. Values attached
// to ctx are kept but its cancellation is not; delivery is bounded by
// Settings.SendTimeout and awaited by Close.
func (c *Client) SendInBackground(ctx context.Context, err error, tags []string, customData map[string]any) {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	if c.closed {
		c.logger.Warn("client is closed, crash report not sent")
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				c.logger.Error("panic while sending crash report", zap.Any("panic", p))
			}
		}()
		outcome := c.sendWithTimeout(context.WithoutCancel(ctx), err, tags, customData)
		c.logger.Debug("background crash report submitted", zap.Stringer("outcome", outcome))
	}()
}

// SendReport delivers a prebuilt report through the sending hooks and the
// offline queue.
func (c *Client) SendReport(ctx context.Context, report *raygun.CrashReport) raygun.Outcome {
	if report == nil {
		return raygun.Dropped
	}
	if !c.settings.HasAPIKey() {
		c.logger.Warn("api key is not set, crash report not sent")
		return raygun.Dropped
	}
	if c.runSendingHooks(ctx, report) {
		c.logger.Debug("crash report canceled by sending hook")
		return raygun.Dropped
	}

	if c.scrubber != nil {
		c.scrubber.ScrubReport(report)
	}

	payload, err := raygun.MarshalCrashReport(report)
	if err != nil {
		c.logger.Warn("failed to encode crash report", zap.Error(err))
		return raygun.Dropped
	}
	return c.queue.Submit(ctx, payload)
}

// Recover reports a panic in progress. Use it deferred:
//
//	defer client.Recover()
//
// The report is sent synchronously, bounded by Settings.SendTimeout, and the
// panic is not re-raised.
func (c *Client) Recover() {
	p := recover()
	if p == nil {
		return
	}
	c.logger.Error("recovered panic", zap.String("panic", fmt.Sprint(p)))
	c.SendAndWait(raygun.NewPanicException(p, 1), []string{"UnhandledException"}, nil)
}

func (c *Client) buildReport(ctx context.Context, err error, tags []string, customData map[string]any) *raygun.CrashReport {
	report := raygun.NewCrashReport(
		raygun.WithError(err, c.builder),
		raygun.WithMachineName(raygun.Lookup("machine_name", c.env.MachineName, c.logger)),
		raygun.WithEnvironment(raygun.BuildEnvironmentInfo(c.env, c.logger)),
		raygun.WithClientInfo(raygun.DefaultClientInfo()),
		raygun.WithVersion(c.resolveVersion()),
		raygun.WithTags(raygun.MergeTags(ctx, tags)...),
		raygun.WithCustomData(raygun.MergeData(ctx, customData)),
		raygun.WithUser(c.resolveUser()),
		raygun.WithBreadcrumbs(c.breadcrumbs.Snapshot()),
	)
	if key := c.groupingKey(err, report); key != "" {
		report.Details.GroupingKey = key
	}
	return report
}

func (c *Client) groupingKey(err error, report *raygun.CrashReport) string {
	c.mu.RLock()
	hooks := append([]func(*GroupingKeyEvent){}, c.groupingHooks...)
	c.mu.RUnlock()

	ev := &GroupingKeyEvent{Err: err, Report: report}
	for _, hook := range hooks {
		func() {
			defer func() {
				if p := recover(); p != nil {
					c.logger.Warn("panic in grouping key hook", zap.Any("panic", p))
				}
			}()
			hook(ev)
		}()
	}
	if ev.Key == "" && c.fingerprint {
		return raygun.Fingerprint(report.Details.Error)
	}
	return ev.Key
}

// runSendingHooks runs the OnSending hooks and reports whether the send was
// canceled.
func (c *Client) runSendingHooks(ctx context.Context, report *raygun.CrashReport) bool {
	if c.handlingHookPanic.Load() {
		return false
	}
	c.mu.RLock()
	hooks := append([]func(*SendingEvent){}, c.sendingHooks...)
	c.mu.RUnlock()

	ev := &SendingEvent{Report: report}
	for _, hook := range hooks {
		c.callSendingHook(ctx, hook, ev)
	}
	return ev.Cancel
}

func (c *Client) callSendingHook(ctx context.Context, hook func(*SendingEvent), ev *SendingEvent) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		c.logger.Error("panic in sending hook", zap.Any("panic", p))
		if !c.handlingHookPanic.CompareAndSwap(false, true) {
			return
		}
		defer c.handlingHookPanic.Store(false)
		c.Send(ctx, raygun.NewPanicException(p, 1), nil, nil)
	}()
	hook(ev)
}
