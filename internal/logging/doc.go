// Package logging builds the slog loggers used across sessionwatch.
//
// Components obtain a child logger through NewComponentLogger so every line
// carries a component field; the console handler lifts that field into the
// line prefix. Tests and optional collaborators use NewNop.
package logging
