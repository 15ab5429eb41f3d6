// Package raygun provides crash reporting and real user monitoring (RUM) for
// Go applications that report to a Raygun-compatible collection endpoint.
//
// The core package holds the wire model, the error-tree builder, the report
// assembler and the small shared collaborators (Sender, Connectivity,
// breadcrumbs, user identity, settings). Delivery, RUM and transports live in
// sub-packages and are wired together by the client package.
//
// # Core Components
//
//   - CrashReport: the payload describing one captured error
//   - ErrorInfoBuilder: walks an error graph (wrapped, joined and aggregate
//     errors) into an ErrorInfo tree, decoding native image debug info
//   - NewCrashReport: assembles machine, environment, user, breadcrumbs and
//     the error tree into a CrashReport
//   - Breadcrumbs: bounded FIFO trail attached to the next crash report
//   - Sender / Connectivity: the transport boundary
//
// # Quick Start
//
//	settings := raygun.DefaultSettings()
//	settings.APIKey = "my-key"
//	c, err := client.New(settings, client.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	defer c.Recover()
//
//	if err := doWork(); err != nil {
//	    c.Send(ctx, err, []string{"worker"}, nil)
//	}
//
// # Design Principles
//
//   - Reporting never breaks the host: every failure is absorbed and logged
//   - Crash reports survive being offline through a bounded on-disk queue
//   - RUM events are best-effort: never retried, never stored
package raygun
