// Package commands defines the lendloop CLI, a headless front end for the marketplace.
//
// Commands
//
//   - login, register, logout, whoami   Account and token slot
//   - listings [--mine]                 Browse all listings or your own
//   - history [--tab]                   Bought, sold, borrowed or lent orders
//   - create                            Walk the create-listing wizard from flags
//   - edit <id>                         Change a listing you own
//   - delete <id>                       Remove a listing you own
//   - buy <id>, rent <id>               Place an order
//
// # Implementation
//
// The root command loads configuration, opens the token slot and wires the
// client layer before any subcommand runs. Every view goes through the
// navigation controller, so a command renders exactly what a screen would.
package commands
