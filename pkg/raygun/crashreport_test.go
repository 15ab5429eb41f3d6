package raygun

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCrashReport_Boom(t *testing.T) {
	report := NewCrashReport(
		WithError(&Exception{Type: "System.Exception", Message: "boom"}, nil),
		WithTags("a", "b"),
		WithCustomData(map[string]any{"k": "v"}),
		WithClientInfo(DefaultClientInfo()),
	)

	payload, err := MarshalCrashReport(report)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, Unmarshal(payload, &decoded))

	details, ok := decoded["details"].(map[string]any)
	require.True(t, ok, "details should be an object")
	assert.Equal(t, []any{"a", "b"}, details["tags"])
	assert.Equal(t, map[string]any{"k": "v"}, details["userCustomData"])

	errObj, ok := details["error"].(map[string]any)
	require.True(t, ok, "error should be an object")
	assert.Equal(t, "boom", errObj["message"])
	assert.Equal(t, "System.Exception", errObj["className"])

	// Unset optional fields are omitted rather than null.
	for _, key := range []string{"user", "breadcrumbs", "groupingKey", "environment", "machineName", "version"} {
		assert.NotContains(t, details, key)
	}
	for _, key := range []string{"innerError", "innerErrors", "stackTrace", "data", "images"} {
		assert.NotContains(t, errObj, key)
	}
	assert.NotContains(t, string(payload), "null")

	client, ok := details["client"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, ClientName, client["name"])
	assert.Equal(t, ClientURL, client["clientUrl"])
}

func TestNewCrashReport_OccurredOn(t *testing.T) {
	before := time.Now().UTC()
	report := NewCrashReport()
	after := time.Now().UTC()

	assert.Equal(t, time.UTC, report.OccurredOn.Location())
	assert.False(t, report.OccurredOn.Before(before.Add(-time.Second)))
	assert.False(t, report.OccurredOn.After(after.Add(time.Second)))
	require.NotNil(t, report.Details)

	local := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	report = NewCrashReport(WithOccurredOn(local))
	assert.Equal(t, time.UTC, report.OccurredOn.Location())
	assert.True(t, report.OccurredOn.Equal(local))
}

func TestNewCrashReport_AllParts(t *testing.T) {
	user := &UserInfo{Identifier: "u1", Email: "u1@example.com"}
	crumbs := NewBreadcrumbs()
	crumbs.Record(NewBreadcrumb("clicked", "ui"))
	tags := []string{"x"}
	data := map[string]any{"n": 1}

	report := NewCrashReport(
		WithMachineName("host-1"),
		WithVersion("2.0.0"),
		WithGroupingKey("group-1"),
		WithEnvironment(&EnvironmentInfo{OSVersion: "10", Locale: "en-US"}),
		WithUser(user),
		WithBreadcrumbs(crumbs.Snapshot()),
		WithTags(tags...),
		WithCustomData(data),
	)

	// Inputs are copied.
	user.Email = "changed"
	tags[0] = "changed"
	data["n"] = 2

	d := report.Details
	assert.Equal(t, "host-1", d.MachineName)
	assert.Equal(t, "2.0.0", d.Version)
	assert.Equal(t, "group-1", d.GroupingKey)
	assert.Equal(t, "en-US", d.Environment.Locale)
	assert.Equal(t, "u1@example.com", d.User.Email)
	assert.Equal(t, []string{"x"}, d.Tags)
	assert.Equal(t, 1, d.UserCustomData["n"])
	require.Len(t, d.Breadcrumbs, 1)
	assert.Equal(t, "clicked", d.Breadcrumbs[0].Message)
}

func TestNewCrashReport_LastOptionWins(t *testing.T) {
	report := NewCrashReport(WithVersion("1"), WithVersion("2"), WithTags("a"), WithTags())
	assert.Equal(t, "2", report.Details.Version)
	assert.Nil(t, report.Details.Tags)
}

func TestMarshalCrashReport_Nil(t *testing.T) {
	_, err := MarshalCrashReport(nil)
	assert.Error(t, err)
}
