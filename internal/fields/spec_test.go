package fields

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
		want  Table
	}{
		{
			name:  "bare name uses decamelized header",
			items: []Item{Name("tenantId")},
			want:  Table{{Key: "tenantId", WireName: "tenant-id"}},
		},
		{
			name:  "descriptor defaults to x- prefix",
			items: []Item{Descriptor{Key: "userId", Required: true}},
			want:  Table{{Key: "userId", WireName: "x-user-id", Required: true}},
		},
		{
			name:  "explicit header kept verbatim",
			items: []Item{Descriptor{Key: "app", WireName: "X-App-Name"}},
			want:  Table{{Key: "app", WireName: "X-App-Name"}},
		},
		{
			name:  "pointer descriptor",
			items: []Item{&Descriptor{Key: "region"}},
			want:  Table{{Key: "region", WireName: "x-region"}},
		},
		{
			name:  "sorted by key",
			items: []Item{Name("zone"), Descriptor{Key: "userId", Required: true}, Name("appId")},
			want: Table{
				{Key: "appId", WireName: "app-id"},
				{Key: "userId", WireName: "x-user-id", Required: true},
				{Key: "zone", WireName: "zone"},
			},
		},
		{
			name:  "empty list",
			items: nil,
			want:  Table{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.items)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_OrderIndependent(t *testing.T) {
	a, err := Resolve([]Item{Name("b"), Name("c"), Descriptor{Key: "a"}})
	require.NoError(t, err)
	b, err := Resolve([]Item{Descriptor{Key: "a"}, Name("c"), Name("b")})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, []string{"a", "b", "c"}, a.Keys())
}

func TestResolve_ConfigurationError(t *testing.T) {
	var nilDescriptor *Descriptor

	tests := []struct {
		name  string
		items []Item
	}{
		{"nil item", []Item{nil}},
		{"nil descriptor pointer", []Item{nilDescriptor}},
		{"empty name", []Item{Name("  ")}},
		{"descriptor without key", []Item{Descriptor{WireName: "x-foo"}}},
		{"duplicate key", []Item{Name("a"), Descriptor{Key: "a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Resolve(tt.items)
			require.Error(t, err)
			assert.Nil(t, table)

			var cfgErr *ConfigurationError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestDecamelize(t *testing.T) {
	cases := map[string]string{
		"tenantId":  "tenant-id",
		"userID":    "user-i-d",
		"Tenant":    "tenant",
		"plain":     "plain",
		"appNameV2": "app-name-v2",
		"":          "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Decamelize(in), in)
	}
}

func TestTable_WireNames(t *testing.T) {
	table, err := Resolve([]Item{Name("tenantId"), Descriptor{Key: "userId"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"tenant-id", "x-user-id"}, table.WireNames())
}
