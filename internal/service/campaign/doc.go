// Package campaign implements the campaign lifecycle state machine.
//
// All legal status transitions and their guards live here. The service
// depends only on the Repository contract defined in this package; the
// Postgres implementation lives in repository/postgres. Transitions into
// sending are claimed with a conditional update so overlapping dispatcher
// passes can never pick up the same campaign twice.
package campaign
