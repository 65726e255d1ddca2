// Package sched is a small in-process task scheduler with named schedules
// and conflict policies.
//
// Schedules are registered under stable ids so that callers can express
// intent on collision: replace a stale schedule, treat the duplicate as a
// programming error, or keep the existing one. Triggers decide when a
// schedule fires; DateTrigger runs once, IntervalTrigger runs at a fixed
// rate.
//
// Schedules are held in memory only. A process restart loses pending
// schedules; durability, if wanted, belongs to a backing store outside this
// package.
package sched
