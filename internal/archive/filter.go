package archive

import (
	"context"
	"fmt"
)

// FetchFiltered runs the masking filter: search the archive, fetch
// every hit and cloud-mask it. An empty search result is not an
// error; the caller records it as a gap. Scenes come back in
// archive-return order, which downstream disambiguation depends on.
func FetchFiltered(ctx context.Context, backend Backend, filter AcquisitionFilter) ([]Scene, error) {
	refs, err := backend.Search(ctx, filter)
	if err != nil {
		return nil, err
	}

	scenes := make([]Scene, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scene, err := backend.Fetch(ctx, ref, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch scene %s: %w", ref.ID, err)
		}
		scenes = append(scenes, *ApplyCloudMask(scene, filter.CloudThreshold))
	}
	return scenes, nil
}
