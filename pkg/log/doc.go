/*
Package log provides structured logging for sentinel using zerolog.

All components log through a package-level zerolog.Logger configured once
via Init, and a per-component child logger obtained with WithComponent or
WithTarget. JSON output is the production default; console output is
available for local development.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("registry")
	logger.Warn().Str("ip", ip).Msg("add_target: target already present")

The packages that log (lock, statemachine, scheduler, engine, api, and the
CLI) do so through a WithComponent logger rather than the bare global
Logger, so their log lines are attributable to the subsystem that emitted
them. store, prober, and events do not log.
*/
package log
