// Package plant holds the static configuration of the terminal: field
// devices, their register maps, tanks, and product properties.
//
// The core treats this data as read-only. It is loaded from SQLite at
// startup into a cached Registry; pollers and the blend orchestrator query
// the Registry, never the database directly.
//
// Ownership model: definitions are supplied by the surrounding system
// (master-data management is out of scope); this package only validates and
// serves them.
package plant
