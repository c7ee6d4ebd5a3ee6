// Package analyzer acquires raw capture buffers for one track at a time.
//
// Two Capturer implementations exist. Exec shells out to the logic analyzer
// export tool configured in analyzer.command, substituting the placeholders
// {output}, {cylinder}, {head} and {track} in analyzer.args, then reads the
// exported binary back. Dir replays captures that were exported earlier,
// one file per track named by analyzer.file_pattern.
package analyzer
