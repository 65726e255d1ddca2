// Package bot implements the reconciliation agent: a fixed-rate favorites
// poll that diffs marketplace listings against last-seen state, reserves
// live stock up to a per-item cap, keeps holds alive by re-reserving them at
// expiry, and races predicted restocks at their drop instant.
package bot
