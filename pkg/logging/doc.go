// Package logging builds the log/slog loggers used across stubd.
//
//	logger, closeLog, err := logging.Open(logging.Config{
//	    Level: logging.ParseLevel("debug"),
//	    File:  "stubd.log",
//	})
//	defer closeLog()
//	logger.Info("rule matched", "rule", id, "path", r.Path)
//
// Components accept a *slog.Logger through an option and fall back to Nop
// when none is given.
package logging
