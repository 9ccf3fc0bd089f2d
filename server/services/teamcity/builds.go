package teamcity

import (
	"context"
	"fmt"
	"net/url"

	"github.com/buildbeaver/autopin/common/gerror"
	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/common/models"
)

// dependencyPageSize is the number of dependencies read per request.
const dependencyPageSize = 500

func buildPath(buildID models.BuildID) string {
	return fmt.Sprintf("app/rest/builds/id:%d", buildID)
}

// FindEntry reads a finished build. Returns gerror.ErrNotFound if the build does not exist or has not finished.
func (c *Client) FindEntry(ctx context.Context, buildID models.BuildID) (*models.Build, error) {
	doc := &buildDocument{}
	err := c.getJSON(ctx, buildPath(buildID), url.Values{"fields": {buildFields}}, doc)
	if err != nil {
		if gerror.IsNotFound(err) {
			return nil, gerror.NewErrNotFound(fmt.Sprintf("Build %d not found", buildID)).Wrap(err)
		}
		return nil, fmt.Errorf("error reading build %d: %w", buildID, err)
	}
	if doc.State != "" && doc.State != buildStateFinished {
		return nil, gerror.NewErrNotFound(fmt.Sprintf("Build %d has not finished", buildID)).
			EDetail("state", doc.State)
	}
	return doc.toModel(), nil
}

func (d *buildDocument) toModel() *models.Build {
	build := &models.Build{
		ID:          models.BuildID(d.ID),
		Number:      d.Number,
		BuildTypeID: d.BuildTypeID,
		Status:      models.NormalizeBuildStatus(d.Status),
		Branch:      d.BranchName,
		Pinned:      d.Pinned,
	}
	if d.Tags != nil {
		for _, t := range d.Tags.Tag {
			build.Tags = append(build.Tags, models.Tag(t.Name))
		}
	}
	if d.Triggered != nil && d.Triggered.User != nil {
		build.TriggeredBy = &models.User{ID: d.Triggered.User.ID, Username: d.Triggered.User.Username}
	}
	return build
}

// SetPinned pins or unpins a build. TeamCity attributes the change to the account the client authenticates
// as, so the user the pin is made on behalf of is named in the pin comment.
func (c *Client) SetPinned(ctx context.Context, buildID models.BuildID, pinned bool, user *models.User, comment string) error {
	doc := &pinInfoDocument{Status: pinned}
	if pinned {
		comment = pinComment(comment, user)
	}
	if comment != "" {
		doc.Comment = &commentDocument{Text: comment}
	}
	c.WithFields(logger.Fields{"build_id": buildID, "user": user.String()}).
		Debugf("Setting pinned=%t", pinned)
	err := c.putJSON(ctx, buildPath(buildID)+"/pinInfo", doc, 200, 204)
	if err != nil {
		return fmt.Errorf("error setting pinned=%t on build %d: %w", pinned, buildID, err)
	}
	return nil
}

func pinComment(comment string, user *models.User) string {
	name := user.String()
	switch {
	case name == "":
		return comment
	case comment == "":
		return "Triggered by " + name
	default:
		return fmt.Sprintf("%s (triggered by %s)", comment, name)
	}
}

// GetAllDependencies returns the IDs of every build the specified build depends on through snapshot
// dependencies, directly or transitively, reading as many pages as TeamCity returns.
func (c *Client) GetAllDependencies(ctx context.Context, buildID models.BuildID) ([]models.BuildID, error) {
	var (
		ids   []models.BuildID
		path  = "app/rest/builds"
		query = url.Values{
			"locator": {fmt.Sprintf("snapshotDependency:(to:(id:%d),includeInitial:false),defaultFilter:false,count:%d", buildID, dependencyPageSize)},
			"fields":  {"count,nextHref,build(id)"},
		}
	)
	for {
		doc := &buildsDocument{}
		err := c.getJSON(ctx, path, query, doc)
		if err != nil {
			return nil, fmt.Errorf("error reading dependencies of build %d: %w", buildID, err)
		}
		for _, b := range doc.Build {
			ids = append(ids, models.BuildID(b.ID))
		}
		if doc.NextHref == "" {
			break
		}
		path, query = doc.NextHref, nil
	}
	c.Debugf("Build %d has %d dependencies", buildID, len(ids))
	return ids, nil
}
