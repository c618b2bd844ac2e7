package fields

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioTable(t *testing.T) Table {
	t.Helper()
	table, err := Resolve([]Item{Name("tenantId"), Descriptor{Key: "userId", Required: true}})
	require.NoError(t, err)
	return table
}

func TestExtract_MissingRequired(t *testing.T) {
	table := scenarioTable(t)

	props, errs := table.Extract(Metadata{"tenant-id": "acme"})

	assert.Equal(t, Properties{"tenantId": "acme"}, props)
	assert.Equal(t, []ValidationError{{Key: "userId", Reason: ReasonRequired}}, errs)
	_, hasUser := props["userId"]
	assert.False(t, hasUser, "missing required field must not get a placeholder")
}

func TestExtract_AllPresent(t *testing.T) {
	table := scenarioTable(t)

	props, errs := table.Extract(Metadata{"tenant-id": "acme", "x-user-id": "42"})

	assert.Empty(t, errs)
	assert.Equal(t, Properties{"tenantId": "acme", "userId": "42"}, props)
}

func TestExtract_OptionalAbsentIsNil(t *testing.T) {
	table := scenarioTable(t)

	props, errs := table.Extract(Metadata{"x-user-id": "42"})

	assert.Empty(t, errs)
	v, ok := props["tenantId"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestExtract_OneErrorPerMissingField(t *testing.T) {
	table, err := Resolve([]Item{
		Descriptor{Key: "a", Required: true},
		Descriptor{Key: "b", Required: true},
		Descriptor{Key: "c"},
	})
	require.NoError(t, err)

	props, errs := table.Extract(nil)

	assert.Equal(t, []ValidationError{
		{Key: "a", Reason: ReasonRequired},
		{Key: "b", Reason: ReasonRequired},
	}, errs)
	assert.Equal(t, Properties{"c": nil}, props)
}

func TestExtract_EmptyValueIsPresent(t *testing.T) {
	table, err := Resolve([]Item{Descriptor{Key: "userId", Required: true}})
	require.NoError(t, err)

	props, errs := table.Extract(Metadata{"x-user-id": ""})

	assert.Empty(t, errs)
	assert.Equal(t, Properties{"userId": ""}, props)
}

func TestMetadataFromHeader(t *testing.T) {
	h := http.Header{}
	h.Set("X-User-Id", "42")
	h.Add("X-User-Id", "43")
	h.Set("Tenant-Id", "acme")

	md := MetadataFromHeader(h)

	assert.Equal(t, Metadata{"x-user-id": "42, 43", "tenant-id": "acme"}, md)

	v, ok := md.Lookup("X-USER-ID")
	assert.True(t, ok)
	assert.Equal(t, "42, 43", v)
}

func TestExtract_ExplicitHeaderIsCaseInsensitive(t *testing.T) {
	table, err := Resolve([]Item{Descriptor{Key: "app", WireName: "X-App-Name", Required: true}})
	require.NoError(t, err)

	props, errs := table.Extract(Metadata{"x-app-name": "console"})

	assert.Empty(t, errs)
	assert.Equal(t, "console", props["app"])
}
