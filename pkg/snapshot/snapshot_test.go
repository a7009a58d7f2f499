package snapshot

import (
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bortok/ixvscripts/pkg/util"
	"github.com/bortok/ixvscripts/pkg/value"
)

func sample(t *testing.T) *Snapshot {
	t.Helper()
	s := New()
	require.NoError(t, s.Add("101", TypePort, "P01", value.Map{
		"id":            value.Number("101"),
		"default_name":  value.String("P01"),
		"enabled":       value.Bool(true),
		"mode":          value.String("NETWORK"),
		"link_settings": value.String("10G_FULL"),
	}))
	require.NoError(t, s.Add("7", TypeFilter, "F1", value.Map{
		"id":                     value.Number("7"),
		"mode":                   value.String("PASS_BY_CRITERIA"),
		"criteria":               value.Map{"logical_operation": value.String("AND")},
		"dest_port_list":         value.List{value.Number("101")},
		"source_port_group_list": value.List{},
	}))
	return s
}

func TestAdd_RejectsDuplicate(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("101", TypePort, "P01", nil))

	err := s.Add("101", TypeFilter, "F1", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrDuplicateID))

	var dup *util.DuplicateIDError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "101", dup.ID)

	obj, ok := s.Get("101")
	require.True(t, ok)
	assert.Equal(t, TypePort, obj.Type, "first insert wins")
	assert.NotNil(t, obj.Properties)
}

func TestRoundTrip(t *testing.T) {
	s := sample(t)
	require.NoError(t, s.Add("300", TypePortGroup, "PG1", value.Map{
		"port_list": value.List{value.Number("101"), value.Number("102")},
		"interconnect_info": value.Map{
			"addr": value.String("0.0.0.0"),
			"port": value.Null{},
			"tags": value.List{value.Map{"k": value.Bool(false)}},
		},
		"counter": value.Number("18446744073709551615"),
	}))

	data, err := s.Marshal()
	require.NoError(t, err)

	loaded, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, s.Len(), loaded.Len())

	for _, obj := range s.All() {
		got, ok := loaded.Get(obj.OriginalID)
		require.True(t, ok, "missing %s", obj)
		assert.Equal(t, obj.Type, got.Type)
		assert.Equal(t, obj.Name, got.Name)
		assert.True(t, value.Equal(obj.Properties, got.Properties), "properties of %s differ", obj)
		assert.False(t, got.Resolved())
	}
}

func TestPrettyForm_Golden(t *testing.T) {
	data, err := sample(t).MarshalPretty()
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "pretty", data)
}

func TestPrettyForm_AlsoLoads(t *testing.T) {
	s := sample(t)
	data, err := s.MarshalPretty()
	require.NoError(t, err)

	loaded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, s.Counts(), loaded.Counts())
}

func TestUnmarshal_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"101": `},
		{"array", `[1, 2, 3]`},
		{"null", `null`},
		{"missing type", `{"101": {"name": "P01", "details": {}}}`},
		{"details not object", `{"101": {"name": "P01", "type": "port", "details": [1]}}`},
		{"empty id", `{"": {"name": "P01", "type": "port", "details": {}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, util.ErrMalformedSnapshot), "got %v", err)
		})
	}
}

func TestUnmarshal_LegacyLayout(t *testing.T) {
	// Layout with Python-style separators, as found in older export files.
	data := `{"5": {"name": "PG", "type": "port_group", "details": {"port_list": [1, 2], "mode": "NETWORK"}}, "1": {"name": "P1", "type": "port", "details": {"id": 1}}}`

	s, err := Unmarshal([]byte(data))
	require.NoError(t, err)
	pg, ok := s.Get("5")
	require.True(t, ok)
	assert.Equal(t, TypePortGroup, pg.Type)
	assert.Equal(t, value.List{value.Number("1"), value.Number("2")}, pg.Properties["port_list"])
}

func TestObjects_FiltersByType(t *testing.T) {
	s := sample(t)
	require.NoError(t, s.Add("102", TypePort, "P02", nil))

	ports := s.Objects(TypePort)
	assert.Len(t, ports, 2)
	for _, p := range ports {
		assert.Equal(t, TypePort, p.Type)
	}
	assert.Empty(t, s.Objects(TypeIcon))
	assert.Equal(t, map[ObjectType]int{TypePort: 2, TypeFilter: 1}, s.Counts())
}

func TestAll_SortedByTypeThenID(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("20", TypeFilter, "F20", nil))
	require.NoError(t, s.Add("100", TypePort, "P100", nil))
	require.NoError(t, s.Add("9", TypePort, "P9", nil))
	require.NoError(t, s.Add("3", TypeIcon, "I3", nil))

	var got []ID
	for _, obj := range s.All() {
		got = append(got, obj.OriginalID)
	}
	assert.Equal(t, []ID{"3", "9", "100", "20"}, got)
}

func TestParseObjectType(t *testing.T) {
	typ, err := ParseObjectType("port_group")
	require.NoError(t, err)
	assert.Equal(t, TypePortGroup, typ)

	_, err = ParseObjectType("vlan")
	assert.Error(t, err)
}
