package dictionary

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleValues = `{
  "id_code": 200,
  "id_message": "OK",
  "data": {
    "groups": {
      "0": "None",
      "18": "ZTF",
      "66": "Young Supernova Experiment",
      "112": "JADES"
    },
    "filters": {
      "0": "Other",
      "110": "g-ZTF",
      "111": "r-ZTF",
      "112": "i-ZTF",
      "220": "F200W-NIRCam"
    },
    "instruments": {
      "0": "Other",
      "196": "ZTF-Cam",
      "259": "JWST - NIRCam"
    },
    "units": {
      "1": "ABMag",
      "2": "STMag",
      "10": "uJy"
    },
    "archives": {
      "0": "Other",
      "1": "SDSS",
      "2": "DSS2 Red"
    },
    "at_types": {
      "1": "PSN - Possible SN",
      "2": "PNV - Possible Nova",
      "4": "Other - Undefined"
    },
    "hosts": ["not", "an", "object"],
    "version": "2.0"
  }
}`

func mustParse(t *testing.T, data string) *Dictionary {
	t.Helper()
	dict, err := Parse([]byte(data))
	require.NoError(t, err)
	return dict
}

func TestParse(t *testing.T) {
	dict := mustParse(t, sampleValues)

	assert.Equal(t,
		[]string{Groups, Filters, Instruments, Units, Archives, ATTypes},
		dict.Categories())

	groups := dict.categories[Groups]
	require.Len(t, groups, 4)
	assert.Equal(t, Entry{Code: "0", Label: "None"}, groups[0])
	assert.Equal(t, Entry{Code: "112", Label: "JADES"}, groups[3])

	assert.NotContains(t, dict.categories, "hosts")
	assert.NotContains(t, dict.categories, "version")
}

func TestParsePreservesFileOrder(t *testing.T) {
	// Codes deliberately out of numeric and lexical order.
	dict := mustParse(t, `{"data": {
		"groups": {"9": "B", "10": "A", "2": "C"},
		"filters": {}, "instruments": {}, "units": {}, "archives": {}, "at_types": {}
	}}`)

	var codes []string
	for _, e := range dict.categories[Groups] {
		codes = append(codes, e.Code)
	}
	assert.Equal(t, []string{"9", "10", "2"}, codes)
}

func TestParseNonStringLabels(t *testing.T) {
	dict := mustParse(t, `{"data": {
		"groups": {"1": 42, "2": true, "3": null, "4": {"nested": "x"}, "5": "Five"},
		"filters": {}, "instruments": {}, "units": {}, "archives": {}, "at_types": {}
	}}`)

	assert.Equal(t, []Entry{
		{Code: "1", Label: "42"},
		{Code: "2", Label: "true"},
		{Code: "3", Label: ""},
		{Code: "5", Label: "Five"},
	}, dict.categories[Groups])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"not json", `{"data": `, ErrMalformed},
		{"no data", `{"id_code": 200}`, ErrMalformed},
		{"data not object", `{"data": []}`, ErrMalformed},
		{"missing category", `{"data": {"groups": {}, "filters": {}}}`, ErrMissingCategory},
		{"required category not object", `{"data": {
			"groups": [], "filters": {}, "instruments": {}, "units": {}, "archives": {}, "at_types": {}
		}}`, ErrMissingCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(sampleValues), 0o644))

	dict, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, dict.Source)
	assert.Contains(t, dict.categories, ATTypes)
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), path)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("<html>not json</html>"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), path)
}

func TestResolveRoundTrip(t *testing.T) {
	dict := mustParse(t, sampleValues)

	for _, category := range RequiredCategories {
		for _, e := range dict.categories[category] {
			code, err := dict.Resolve(category, e.Label)
			require.NoError(t, err, "%s/%s", category, e.Label)
			assert.Equal(t, e.Code, code, "%s/%s", category, e.Label)
		}
	}
}

func TestResolveSubstring(t *testing.T) {
	dict := mustParse(t, sampleValues)

	tests := []struct {
		category string
		term     string
		want     string
	}{
		{ATTypes, "PSN", "1"},
		{ATTypes, "Nova", "2"},
		{Groups, "Young", "66"},
		{Instruments, "NIRCam", "259"},
		{Filters, "F200W", "220"},
		{Filters, "r-ZTF", "111"},
		{Units, "uJy", "10"},
		{Archives, "SDSS", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.category+"/"+tt.term, func(t *testing.T) {
			code, err := dict.Resolve(tt.category, tt.term)
			require.NoError(t, err)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestResolveFirstMatchWins(t *testing.T) {
	dict := mustParse(t, `{"data": {
		"groups": {"7": "ZTF Partnership", "18": "ZTF"},
		"filters": {}, "instruments": {}, "units": {}, "archives": {}, "at_types": {}
	}}`)

	code, err := dict.Resolve(Groups, "ZTF")
	require.NoError(t, err)
	assert.Equal(t, "7", code)
}

func TestResolveUnlistedFilter(t *testing.T) {
	dict := mustParse(t, sampleValues)

	for _, term := range []string{"F444W", "Clear", "", "  "} {
		code, err := dict.Resolve(Filters, term)
		require.NoError(t, err, term)
		assert.Equal(t, UnlistedFilter, code, term)
	}
}

func TestResolveMissFails(t *testing.T) {
	dict := mustParse(t, sampleValues)

	for _, category := range []string{Groups, Instruments, Units, Archives, ATTypes} {
		t.Run(category, func(t *testing.T) {
			code, err := dict.Resolve(category, "definitely not listed")
			require.Error(t, err)
			assert.Empty(t, code)
			assert.ErrorIs(t, err, ErrCodeNotFound)

			var lookupErr *LookupError
			require.True(t, errors.As(err, &lookupErr))
			assert.Equal(t, category, lookupErr.Category)
			assert.Equal(t, "definitely not listed", lookupErr.Term)
		})
	}
}

func TestResolveEmptyTermFails(t *testing.T) {
	dict := mustParse(t, sampleValues)

	_, err := dict.Resolve(Groups, "")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestResolveUnknownCategory(t *testing.T) {
	dict := mustParse(t, sampleValues)

	_, err := dict.Resolve("telescopes", "anything")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestResolveFilter(t *testing.T) {
	dict := mustParse(t, sampleValues)

	code, listed := dict.ResolveFilter("g-ZTF")
	assert.Equal(t, "110", code)
	assert.True(t, listed)

	code, listed = dict.ResolveFilter("F444W")
	assert.Equal(t, UnlistedFilter, code)
	assert.False(t, listed)

	// Matching the "Other" label itself still counts as unlisted.
	code, listed = dict.ResolveFilter("Other")
	assert.Equal(t, UnlistedFilter, code)
	assert.False(t, listed)
}
