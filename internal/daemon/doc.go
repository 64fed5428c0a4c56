// Package daemon holds the long-running helpers of soundloopd: config
// hot-reload and the quiet mode gate.
package daemon
