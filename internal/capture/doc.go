// Package capture orchestrates a capture session: it positions the drive,
// acquires each track through an analyzer, decodes it, records the outcome in
// the session database and finally writes the SCP image.
//
// Runner performs live (or replayed) captures and resumes sessions by
// skipping tracks already recorded. Rebuilder re-decodes the raw captures kept
// in the capture cache with new decode options using a bounded worker pool.
// Classify maps decoder errors onto per-track statuses shared by both.
package capture
