package teamcity

// JSON representations of the TeamCity REST API resources used by autopin.

const (
	buildStateFinished = "finished"
	// featureTypeAutopin is the type of the build feature that configures a pin rule.
	featureTypeAutopin = "autopin"

	featureParamStatus          = "status"
	featureParamBranchPattern   = "branch_pattern"
	featureParamPinDependencies = "pin_dependencies"
	featureParamComment         = "comment"
)

const buildFields = "id,number,status,state,branchName,buildTypeId,pinned,tags(tag(name)),triggered(type,user(id,username))"

type buildDocument struct {
	ID          int64              `json:"id"`
	Number      string             `json:"number,omitempty"`
	Status      string             `json:"status,omitempty"`
	State       string             `json:"state,omitempty"`
	BranchName  string             `json:"branchName,omitempty"`
	BuildTypeID string             `json:"buildTypeId,omitempty"`
	Pinned      bool               `json:"pinned,omitempty"`
	Tags        *tagsDocument      `json:"tags,omitempty"`
	Triggered   *triggeredDocument `json:"triggered,omitempty"`
}

type buildsDocument struct {
	Count    int             `json:"count"`
	NextHref string          `json:"nextHref,omitempty"`
	Build    []buildDocument `json:"build"`
}

type tagsDocument struct {
	Count int           `json:"count"`
	Tag   []tagDocument `json:"tag"`
}

type tagDocument struct {
	Name string `json:"name"`
}

type triggeredDocument struct {
	Type string        `json:"type,omitempty"`
	User *userDocument `json:"user,omitempty"`
}

type userDocument struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
}

type pinInfoDocument struct {
	Status  bool             `json:"status"`
	Comment *commentDocument `json:"comment,omitempty"`
}

type commentDocument struct {
	Text string `json:"text"`
}

type featuresDocument struct {
	Count   int               `json:"count"`
	Feature []featureDocument `json:"feature"`
}

type featureDocument struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	Disabled   bool                `json:"disabled,omitempty"`
	Properties *propertiesDocument `json:"properties,omitempty"`
}

type propertiesDocument struct {
	Property []propertyDocument `json:"property"`
}

type propertyDocument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// params returns the feature's properties by name.
func (f *featureDocument) params() map[string]string {
	params := make(map[string]string)
	if f.Properties != nil {
		for _, p := range f.Properties.Property {
			params[p.Name] = p.Value
		}
	}
	return params
}
