// Package domain holds the core entities of the campaign engine: campaigns,
// segments, subscribers, send records, events, and daily metric rollups.
//
// Types here carry no behavior beyond small invariant helpers. Business rules
// live in the service packages; persistence lives in repository/postgres.
package domain
