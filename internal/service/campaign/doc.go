// Package campaign implements the campaign lifecycle: idempotent start with
// an immediate first wave, terminal stop with bulk job skipping, operator
// requeue, and the repeat-wave watermark claim used by the watchdog. It
// depends on repository interfaces defined in this package and should never
// import from api/.
//
// Repository implementations live in repository/postgres.
package campaign
