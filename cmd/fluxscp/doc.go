// Command fluxscp captures floppy disks through a logic analyzer and writes
// SuperCard Pro (SCP) flux images.
//
// Subcommands cover the whole pipeline: capture drives the disk and analyzer,
// build writes an image from pre-exported captures or a recorded session,
// rebuild re-decodes cached raw captures with new decode options, decode and
// inspect examine single captures and finished images, and session, cache,
// presets and config manage local state.
package main
