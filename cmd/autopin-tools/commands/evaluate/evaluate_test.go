package evaluate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/buildbeaver/autopin/common/models"
	"github.com/buildbeaver/autopin/server/app"
	"github.com/buildbeaver/autopin/server/services/rules"
	"github.com/buildbeaver/autopin/server/services/teamcity"
)

func newFakeTeamCity(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/app/rest/builds/id:42", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 42, "number": "17", "status": "SUCCESS", "state": "finished", "branchName": "main",
			"buildTypeId": "Proj_Build", "tags": {"count": 1, "tag": [{"name": "autopin"}]}}`))
	})
	mux.HandleFunc("/app/rest/buildTypes/id:Proj_Build/features", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count": 1, "feature": [{"id": "BUILD_EXT_1", "type": "autopin", "properties": {"property": [
			{"name": "status", "value": "successful"},
			{"name": "branch_pattern", "value": "main|release/.*"},
			{"name": "pin_dependencies", "value": "true"},
			{"name": "comment", "value": "release candidate"}]}}]}`))
	})
	mux.HandleFunc("/app/rest/builds", func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Query().Get("locator"), "snapshotDependency:(to:(id:42)")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count": 2, "build": [{"id": 40}, {"id": 41}]}`))
	})
	return httptest.NewServer(mux)
}

func testConfig(url string) *app.ServerConfig {
	return &app.ServerConfig{
		TeamCityConfig: teamcity.ClientConfig{
			URL:     teamcity.ServerURL(url),
			Token:   "token",
			Timeout: 5 * time.Second,
		},
	}
}

func TestEvaluate(t *testing.T) {
	tc := newFakeTeamCity(t)
	defer tc.Close()

	result, err := evaluate(context.Background(), testConfig(tc.URL), 42, true)
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Equal(t, models.BuildID(42), result.Build.ID)
	require.Len(t, result.Rules, 1)
	require.Equal(t, "Proj_Build/BUILD_EXT_1", result.Rules[0].ID)
	require.Len(t, result.Decisions, 2)
	require.Equal(t, models.DecisionSourceTag, result.Decisions[0].Source)
	require.Equal(t, models.DecisionSourceRule, result.Decisions[1].Source)
	require.True(t, result.Decisions[1].Cascade)
	require.Equal(t, []models.BuildID{40, 41}, result.Dependencies)

	result, err = evaluate(context.Background(), testConfig(tc.URL), 42, false)
	require.NoError(t, err)
	require.Empty(t, result.Dependencies)
}

func TestEvaluateWithRulesFile(t *testing.T) {
	tc := newFakeTeamCity(t)
	defer tc.Close()

	path := filepath.Join(t.TempDir(), "rules.yml")
	err := os.WriteFile(path, []byte("rules:\n  - id: failures\n    status: failed\n  - id: bad\n    branch_pattern: \"(\"\n"), 0600)
	require.NoError(t, err)

	config := testConfig(tc.URL)
	config.RulesConfig = app.RulesConfig{RulesFile: rules.RulesFilePath(path), DisableFeatureRules: true}
	result, err := evaluate(context.Background(), config, 42, true)
	require.NoError(t, err)
	require.Len(t, result.Rules, 2)
	require.Len(t, result.Decisions, 1, "only the tag decision applies to a successful build")
	require.Len(t, result.Errors, 1, "the invalid branch pattern is reported")
}

func TestEvaluateMissingBuild(t *testing.T) {
	tc := newFakeTeamCity(t)
	defer tc.Close()

	_, err := evaluate(context.Background(), testConfig(tc.URL), 7, true)
	require.Error(t, err)
}
