package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"fluxscp/internal/config"
	"fluxscp/internal/session"
	"fluxscp/internal/textutil"
)

// defaultOutputPath places the image in the output directory, named after
// the session label or its short identifier.
func defaultOutputPath(cfg *config.Config, sess *session.Session) string {
	name := textutil.SanitizeFileName(sess.Label)
	if name == "" {
		name = shortID(sess.ID)
	}
	return filepath.Join(cfg.Paths.OutputDir, name+".scp")
}

func resolveOutputPath(cfg *config.Config, sess *session.Session, flag string) (string, error) {
	flag = strings.TrimSpace(flag)
	if flag == "" {
		if sess.OutputPath != "" {
			return sess.OutputPath, nil
		}
		return defaultOutputPath(cfg, sess), nil
	}
	expanded, err := config.ExpandPath(flag)
	if err != nil {
		return "", fmt.Errorf("resolve output path: %w", err)
	}
	return expanded, nil
}

// lookupSession resolves a session reference; "latest" selects the newest
// session.
func lookupSession(ctx context.Context, store *session.Store, ref string) (*session.Session, error) {
	if strings.EqualFold(strings.TrimSpace(ref), "latest") {
		return store.Latest(ctx)
	}
	return store.Resolve(ctx, ref)
}

func expandArgPath(value string) (string, error) {
	expanded, err := config.ExpandPath(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", value, err)
	}
	return expanded, nil
}

func defaultLabelFromDir(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return base
}
