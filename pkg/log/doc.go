// Package log provides structured logging for the keysas daemons using zerolog.
//
// A single package-level Logger is configured once via Init. The With*
// helpers (WithComponent, WithDevice) return child loggers carrying a
// component or device field; the io daemon, the PKI tool and the transfer
// engine log through the package-level helpers (Info, Warn, Errorf, ...),
// which attach neither field.
package log
