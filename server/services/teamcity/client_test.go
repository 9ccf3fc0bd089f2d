package teamcity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildbeaver/autopin/common/gerror"
	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/common/models"
)

// fakeTeamCity serves the parts of the TeamCity REST API the client uses.
type fakeTeamCity struct {
	mu           sync.Mutex
	t            *testing.T
	builds       map[int64]*buildDocument
	dependencies map[int64][]int64
	features     map[string][]featureDocument
	pinInfo      map[int64]pinInfoDocument
	tagPuts      int
	failNext     int
	pageSize     int
}

func newFakeTeamCity(t *testing.T) *fakeTeamCity {
	return &fakeTeamCity{
		t:            t,
		builds:       make(map[int64]*buildDocument),
		dependencies: make(map[int64][]int64),
		features:     make(map[string][]featureDocument),
		pinInfo:      make(map[int64]pinInfoDocument),
		pageSize:     2,
	}
}

func (f *fakeTeamCity) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer secret-token" {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	if f.failNext > 0 {
		f.failNext--
		http.Error(w, "Server is starting", http.StatusServiceUnavailable)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/tc/app/rest/")
	switch {
	case path == "builds" && r.Method == http.MethodGet:
		f.listDependencies(w, r)
	case strings.HasPrefix(path, "builds/id:"):
		rest := strings.TrimPrefix(path, "builds/id:")
		idStr, sub, _ := strings.Cut(rest, "/")
		id, err := strconv.ParseInt(idStr, 10, 64)
		require.NoError(f.t, err)
		build, ok := f.builds[id]
		if !ok {
			http.Error(w, "No build found by locator 'id:"+idStr+"'", http.StatusNotFound)
			return
		}
		f.serveBuild(w, r, build, sub)
	case strings.HasPrefix(path, "buildTypes/id:") && strings.HasSuffix(path, "/features"):
		bt := strings.TrimSuffix(strings.TrimPrefix(path, "buildTypes/id:"), "/features")
		features, ok := f.features[bt]
		if !ok {
			http.Error(w, "No build type found", http.StatusNotFound)
			return
		}
		f.writeJSON(w, &featuresDocument{Count: len(features), Feature: features})
	default:
		http.Error(w, "unexpected request "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
	}
}

func (f *fakeTeamCity) serveBuild(w http.ResponseWriter, r *http.Request, build *buildDocument, sub string) {
	switch {
	case sub == "" && r.Method == http.MethodGet:
		require.Equal(f.t, buildFields, r.URL.Query().Get("fields"))
		f.writeJSON(w, build)
	case sub == "pinInfo" && r.Method == http.MethodPut:
		require.Equal(f.t, "application/json", r.Header.Get("Content-Type"))
		doc := pinInfoDocument{}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&doc))
		f.pinInfo[build.ID] = doc
		build.Pinned = doc.Status
		f.writeJSON(w, &doc)
	case sub == "tags" && r.Method == http.MethodGet:
		if build.Tags == nil {
			f.writeJSON(w, &tagsDocument{})
			return
		}
		f.writeJSON(w, build.Tags)
	case sub == "tags" && r.Method == http.MethodPut:
		doc := &tagsDocument{}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(doc))
		f.tagPuts++
		build.Tags = doc
		f.writeJSON(w, doc)
	default:
		http.Error(w, "unexpected request "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
	}
}

// listDependencies answers snapshot dependency locators, a page at a time.
func (f *fakeTeamCity) listDependencies(w http.ResponseWriter, r *http.Request) {
	locator := r.URL.Query().Get("locator")
	require.Contains(f.t, locator, "includeInitial:false")
	start := strings.Index(locator, "to:(id:") + len("to:(id:")
	end := strings.Index(locator[start:], ")")
	id, err := strconv.ParseInt(locator[start:start+end], 10, 64)
	require.NoError(f.t, err)
	offset := 0
	if i := strings.Index(locator, "start:"); i >= 0 {
		offset, err = strconv.Atoi(locator[i+len("start:"):])
		require.NoError(f.t, err)
	}

	deps := f.dependencies[id]
	doc := &buildsDocument{Build: []buildDocument{}}
	for i := offset; i < len(deps) && i < offset+f.pageSize; i++ {
		doc.Build = append(doc.Build, buildDocument{ID: deps[i]})
	}
	doc.Count = len(doc.Build)
	if offset+f.pageSize < len(deps) {
		next := "snapshotDependency:(to:(id:" + strconv.FormatInt(id, 10) + "),includeInitial:false),start:" + strconv.Itoa(offset+f.pageSize)
		doc.NextHref = "/tc/app/rest/builds?locator=" + next
	}
	f.writeJSON(w, doc)
}

func (f *fakeTeamCity) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	require.NoError(f.t, json.NewEncoder(w).Encode(v))
}

func newTestClient(t *testing.T, fake *fakeTeamCity) *Client {
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	config := ClientConfig{URL: ServerURL(server.URL + "/tc"), Token: "secret-token", RetryMax: 2}
	authenticator, err := NewAuthenticator(config, logger.NoOpLogFactory)
	require.NoError(t, err)
	client, err := NewClient(config, authenticator, logger.NoOpLogFactory)
	require.NoError(t, err)
	return client
}

func TestFindEntry(t *testing.T) {
	fake := newFakeTeamCity(t)
	fake.builds[42] = &buildDocument{
		ID:          42,
		Number:      "1.0.42",
		Status:      "SUCCESS",
		State:       "finished",
		BranchName:  "release/2.0",
		BuildTypeID: "Project_Build",
		Tags:        &tagsDocument{Count: 1, Tag: []tagDocument{{Name: "autopin"}}},
		Triggered:   &triggeredDocument{Type: "user", User: &userDocument{ID: 7, Username: "alice"}},
	}
	fake.builds[43] = &buildDocument{ID: 43, Status: "SUCCESS", State: "running"}
	client := newTestClient(t, fake)

	build, err := client.FindEntry(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, &models.Build{
		ID:          42,
		Number:      "1.0.42",
		BuildTypeID: "Project_Build",
		Status:      models.BuildStatusSuccess,
		Branch:      "release/2.0",
		Tags:        []models.Tag{models.TagPin},
		TriggeredBy: &models.User{ID: 7, Username: "alice"},
	}, build)

	_, err = client.FindEntry(context.Background(), 99)
	require.Error(t, err)
	require.True(t, gerror.IsNotFound(err))

	_, err = client.FindEntry(context.Background(), 43)
	require.True(t, gerror.IsNotFound(err), "running builds are not in the build history")
}

func TestFindEntryRetriesServerErrors(t *testing.T) {
	fake := newFakeTeamCity(t)
	fake.builds[1] = &buildDocument{ID: 1, Status: "FAILURE", State: "finished"}
	fake.failNext = 2
	client := newTestClient(t, fake)

	build, err := client.FindEntry(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, models.BuildStatusFailure, build.Status)
}

func TestBadCredentials(t *testing.T) {
	fake := newFakeTeamCity(t)
	fake.builds[1] = &buildDocument{ID: 1}
	server := httptest.NewServer(fake)
	defer server.Close()
	config := ClientConfig{URL: ServerURL(server.URL + "/tc/"), Username: "autopin", Password: "wrong"}
	authenticator, err := NewAuthenticator(config, logger.NoOpLogFactory)
	require.NoError(t, err)
	client, err := NewClient(config, authenticator, logger.NoOpLogFactory)
	require.NoError(t, err)

	_, err = client.FindEntry(context.Background(), 1)
	require.True(t, gerror.IsUnauthorized(err))

	_, err = NewAuthenticator(ClientConfig{URL: "http://tc"}, logger.NoOpLogFactory)
	require.Error(t, err)
}

func TestSetPinned(t *testing.T) {
	fake := newFakeTeamCity(t)
	fake.builds[42] = &buildDocument{ID: 42, State: "finished"}
	client := newTestClient(t, fake)

	alice := &models.User{Username: "alice"}
	err := client.SetPinned(context.Background(), 42, true, alice, "auto")
	require.NoError(t, err)
	require.Equal(t, pinInfoDocument{Status: true, Comment: &commentDocument{Text: "auto (triggered by alice)"}}, fake.pinInfo[42])
	require.True(t, fake.builds[42].Pinned)

	// Pinning again leaves the same state
	err = client.SetPinned(context.Background(), 42, true, alice, "auto")
	require.NoError(t, err)
	require.Equal(t, pinInfoDocument{Status: true, Comment: &commentDocument{Text: "auto (triggered by alice)"}}, fake.pinInfo[42])

	err = client.SetPinned(context.Background(), 42, true, nil, "auto")
	require.NoError(t, err)
	require.Equal(t, pinInfoDocument{Status: true, Comment: &commentDocument{Text: "auto"}}, fake.pinInfo[42])

	err = client.SetPinned(context.Background(), 42, false, nil, "")
	require.NoError(t, err)
	require.False(t, fake.builds[42].Pinned)

	err = client.SetPinned(context.Background(), 404, true, nil, "auto")
	require.True(t, gerror.IsNotFound(err))
}

func TestGetAllDependencies(t *testing.T) {
	fake := newFakeTeamCity(t)
	fake.dependencies[42] = []int64{41, 40, 39, 38, 37}
	client := newTestClient(t, fake)

	deps, err := client.GetAllDependencies(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, []models.BuildID{41, 40, 39, 38, 37}, deps, "every page is read")

	deps, err = client.GetAllDependencies(context.Background(), 7)
	require.NoError(t, err)
	require.Empty(t, deps)
}

func TestRemoveTag(t *testing.T) {
	fake := newFakeTeamCity(t)
	fake.builds[7] = &buildDocument{ID: 7, Tags: &tagsDocument{Count: 3, Tag: []tagDocument{
		{Name: "keep"}, {Name: "autopin"}, {Name: "autopin_include_dependencies"},
	}}}
	client := newTestClient(t, fake)

	require.NoError(t, client.RemoveTag(context.Background(), 7, models.TagPin))
	require.Equal(t, []tagDocument{{Name: "keep"}, {Name: "autopin_include_dependencies"}}, fake.builds[7].Tags.Tag)
	require.Equal(t, 1, fake.tagPuts)

	// Removing an absent tag is a no-op
	require.NoError(t, client.RemoveTag(context.Background(), 7, models.TagPin))
	require.Equal(t, 1, fake.tagPuts)

	require.NoError(t, client.RemoveTag(context.Background(), 7, models.TagPinIncludeDependencies))
	require.Equal(t, []tagDocument{{Name: "keep"}}, fake.builds[7].Tags.Tag)
}

func TestPinComment(t *testing.T) {
	alice := &models.User{Username: "alice"}
	require.Equal(t, "auto (triggered by alice)", pinComment("auto", alice))
	require.Equal(t, "Triggered by alice", pinComment("", alice))
	require.Equal(t, "auto (triggered by id:7)", pinComment("auto", &models.User{ID: 7}))
	require.Equal(t, "auto", pinComment("auto", nil))
	require.Equal(t, "", pinComment("", &models.User{}))
}

func TestFeatureRuleProvider(t *testing.T) {
	fake := newFakeTeamCity(t)
	fake.features["Project_Build"] = []featureDocument{
		{ID: "BUILD_EXT_1", Type: "autopin", Properties: &propertiesDocument{Property: []propertyDocument{
			{Name: "status", Value: "successful"},
			{Name: "branch_pattern", Value: "release/.*"},
			{Name: "pin_dependencies", Value: "true"},
			{Name: "comment", Value: "auto"},
		}}},
		{ID: "BUILD_EXT_2", Type: "autopin", Disabled: true},
		{ID: "swabra", Type: "swabra"},
		{ID: "BUILD_EXT_3", Type: "autopin"},
	}
	client := newTestClient(t, fake)
	provider := NewFeatureRuleProvider(client, logger.NoOpLogFactory)

	rules, err := provider.RulesForBuild(context.Background(), &models.Build{ID: 1, BuildTypeID: "Project_Build"})
	require.NoError(t, err)
	require.Equal(t, []*models.PinRule{
		{
			ID:              "Project_Build/BUILD_EXT_1",
			Status:          models.PinStatusSuccessful,
			BranchPattern:   "release/.*",
			PinDependencies: true,
			Comment:         "auto",
		},
		{ID: "Project_Build/BUILD_EXT_3"},
	}, rules)

	rules, err = provider.RulesForBuild(context.Background(), &models.Build{ID: 1})
	require.NoError(t, err)
	require.Empty(t, rules)

	_, err = provider.RulesForBuild(context.Background(), &models.Build{ID: 1, BuildTypeID: "Deleted"})
	require.Error(t, err)

	fake.features["Odd#Build?Type"] = []featureDocument{{ID: "BUILD_EXT_9", Type: "autopin"}}
	rules, err = provider.RulesForBuild(context.Background(), &models.Build{ID: 2, BuildTypeID: "Odd#Build?Type"})
	require.NoError(t, err)
	require.Equal(t, []*models.PinRule{{ID: "Odd#Build?Type/BUILD_EXT_9"}}, rules, "build type IDs are escaped in the request path")
}

func TestResolve(t *testing.T) {
	client, err := NewClient(ClientConfig{URL: "https://ci.example.com/teamcity"}, nil, logger.NoOpLogFactory)
	require.NoError(t, err)
	for in, expected := range map[string]string{
		"app/rest/builds/id:1":                    "https://ci.example.com/teamcity/app/rest/builds/id:1",
		"/teamcity/app/rest/builds?locator=id:1": "https://ci.example.com/teamcity/app/rest/builds?locator=id:1",
	} {
		resolved, err := client.resolve(in)
		require.NoError(t, err)
		require.Equal(t, expected, resolved.String())
	}

	_, err = NewClient(ClientConfig{URL: "not a url"}, nil, logger.NoOpLogFactory)
	require.Error(t, err)
}
