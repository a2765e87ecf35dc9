// Package cli provides the interactive FileKeeper command-line client.
//
// It wires configuration, the API client and an interactive REPL. Every
// REPL line is parsed by a cobra command tree (see newRootCmd), so commands
// share flag parsing, argument validation and help output.
//
// Commands:
//   - ping, login, logout, register
//   - upload, get, dup, version, versions, rm, ls, rename, quota
//   - mkspace, addmember, rmmember, chown, rmspace, spaces
//   - audit, stats, 2fa set, 2fa get
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// A background watcher pings the server and shows online or offline mode in
// the prompt.
package cli
