package teamcity

import (
	"context"
	"fmt"
	"net/url"

	"github.com/buildbeaver/autopin/common/models"
)

// RemoveTag removes a tag from a build by replacing the build's tags with all the others.
// Removing a tag the build does not carry is a no-op and makes no change on the server.
func (c *Client) RemoveTag(ctx context.Context, buildID models.BuildID, tag models.Tag) error {
	path := buildPath(buildID) + "/tags"
	doc := &tagsDocument{}
	err := c.getJSON(ctx, path, url.Values{"fields": {"count,tag(name)"}}, doc)
	if err != nil {
		return fmt.Errorf("error reading tags of build %d: %w", buildID, err)
	}
	kept := &tagsDocument{Tag: []tagDocument{}}
	for _, t := range doc.Tag {
		if t.Name != string(tag) {
			kept.Tag = append(kept.Tag, t)
		}
	}
	if len(kept.Tag) == len(doc.Tag) {
		return nil
	}
	kept.Count = len(kept.Tag)
	err = c.putJSON(ctx, path, kept, 200, 204)
	if err != nil {
		return fmt.Errorf("error removing tag %q from build %d: %w", tag, buildID, err)
	}
	c.Debugf("Removed tag %q from build %d", tag, buildID)
	return nil
}
