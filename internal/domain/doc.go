// Package domain holds the core data types shared across services, workers,
// repositories, and handlers: campaigns, templates, groups, targeting rules,
// and scheduled jobs.
//
// Types here are plain data with small helper methods. Business logic lives
// in the service layer; persistence in repository/postgres.
package domain
