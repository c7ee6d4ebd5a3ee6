package capture

import (
	"context"
	"fmt"

	"fluxscp/internal/scp"
	"fluxscp/internal/session"
)

// BuildImage writes the recorded tracks of sess to outputPath. A nil encoder
// is built from the session's image parameters.
func BuildImage(ctx context.Context, store *session.Store, sess *session.Session, encoder *scp.Encoder, outputPath string) (int, error) {
	if encoder == nil {
		var err error
		if encoder, err = scp.NewEncoder(sess.Settings.Image); err != nil {
			return 0, fmt.Errorf("image encoder: %w", err)
		}
	}
	tracks, err := store.LoadStore(ctx, sess.ID)
	if err != nil {
		return 0, err
	}
	n, err := encoder.WriteFile(outputPath, tracks)
	if err != nil {
		return 0, fmt.Errorf("write image: %w", err)
	}
	return n, nil
}
