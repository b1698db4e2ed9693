// Package logger builds the service's *slog.Logger.
//
// New takes functional options for level, format, output and static
// attributes. Registered ContextExtractor callbacks run on every record, so
// request-scoped values such as the chi request id end up in the output
// without threading loggers through handlers:
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, "paygate"),
//		logger.WithLevelName(cfg.LogLevel),
//		logger.WithRequestID(),
//	)
//	log.InfoContext(ctx, "entitlement command reconciled",
//		logger.UserID(cmd.UserID),
//		logger.Outcome(string(res.Outcome)),
//	)
//
// Attribute helpers in attr.go keep key names consistent across packages.
// Error and UserID return an empty attribute for nil or empty input, which
// slog drops.
package logger
