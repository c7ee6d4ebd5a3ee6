// Package capturecache keeps zstd-compressed copies of raw analyzer captures
// so a session can be re-decoded with different settings (for example a new
// flux offset) without reading the disk again.
//
// # Size Management
//
// Entries are grouped per session. The cache enforces a size budget
// (cache.max_mib) and a 10% free-space floor on the underlying volume; when
// either limit is exceeded the oldest sessions are pruned first. The session
// currently being written is never pruned.
package capturecache
