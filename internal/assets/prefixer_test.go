package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixerProcess(t *testing.T) {
	tests := []struct {
		name    string
		vendors []string
		input   string
		want    string
	}{
		{
			name:    "expanded output keeps indentation",
			vendors: DefaultVendors,
			input:   "a {\n  user-select: none;\n  color: red;\n}\n",
			want: "a {\n  -webkit-user-select: none;\n  -moz-user-select: none;\n  -ms-user-select: none;\n" +
				"  user-select: none;\n  color: red;\n}\n",
		},
		{
			name:    "vendor filter",
			vendors: []string{VendorWebkit},
			input:   "a {\n  user-select: none;\n}\n",
			want:    "a {\n  -webkit-user-select: none;\n  user-select: none;\n}\n",
		},
		{
			name:    "single line rule",
			vendors: []string{VendorWebkit},
			input:   "a{transition:opacity .2s}",
			want:    "a{-webkit-transition:opacity .2s; transition:opacity .2s}",
		},
		{
			name:    "values with functions",
			vendors: []string{VendorWebkit, VendorMS},
			input:   "a {\n  transform: translate(10px, 20px);\n}\n",
			want: "a {\n  -webkit-transform: translate(10px, 20px);\n  -ms-transform: translate(10px, 20px);\n" +
				"  transform: translate(10px, 20px);\n}\n",
		},
		{
			name:    "already prefixed and unknown properties pass through",
			vendors: DefaultVendors,
			input:   "a {\n  -webkit-appearance: none;\n  color: blue;\n}\n",
			want:    "a {\n  -webkit-appearance: none;\n  color: blue;\n}\n",
		},
		{
			name:    "selectors are not declarations",
			vendors: DefaultVendors,
			input:   "order {\n  color: red;\n}\n",
			want:    "order {\n  color: red;\n}\n",
		},
		{
			name:    "inside media queries",
			vendors: []string{VendorMoz},
			input:   "@media (min-width: 10px) {\n  a {\n    tab-size: 4;\n  }\n}\n",
			want:    "@media (min-width: 10px) {\n  a {\n    -moz-tab-size: 4;\n    tab-size: 4;\n  }\n}\n",
		},
		{
			name:    "hand-written prefixes are not repeated",
			vendors: DefaultVendors,
			input:   "a{-webkit-user-select:none;user-select:none}",
			want:    "a{-webkit-user-select:none;-moz-user-select:none; -ms-user-select:none; user-select:none}",
		},
		{
			name:    "prefixes are tracked per rule",
			vendors: []string{VendorWebkit},
			input:   "a{-webkit-user-select:none}b{user-select:none}",
			want:    "a{-webkit-user-select:none}b{-webkit-user-select:none; user-select:none}",
		},
		{
			name:    "flex display values",
			vendors: DefaultVendors,
			input:   "a {\n  display: flex;\n}\nb {\n  display: inline-flex;\n}\n",
			want: "a {\n  display: -webkit-box;\n  display: -ms-flexbox;\n  display: flex;\n}\n" +
				"b {\n  display: -webkit-inline-box;\n  display: -ms-inline-flexbox;\n  display: inline-flex;\n}\n",
		},
		{
			name:    "value prefixes follow the vendor filter",
			vendors: []string{VendorWebkit},
			input:   "a{position:sticky;display:flex}",
			want:    "a{position:-webkit-sticky; position:sticky;display:-webkit-box; display:flex}",
		},
		{
			name:    "hand-written value prefixes are not repeated",
			vendors: DefaultVendors,
			input:   "a{display:-webkit-box;display:flex}",
			want:    "a{display:-webkit-box;display:-ms-flexbox; display:flex}",
		},
		{
			name:    "other values and grid pass through",
			vendors: DefaultVendors,
			input:   "a{display:block;position:relative;grid-template-columns:1fr 1fr}",
			want:    "a{display:block;position:relative;grid-template-columns:1fr 1fr}",
		},
		{
			name:    "comments are preserved",
			vendors: DefaultVendors,
			input:   "/* header */\na {\n  color: red;\n}\n",
			want:    "/* header */\na {\n  color: red;\n}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewPrefixer(tt.vendors).Process(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrefixerNoVendors(t *testing.T) {
	input := "a {\n  user-select: none;\n}\n"
	got, err := NewPrefixer(nil).Process(input)
	require.NoError(t, err)
	assert.Equal(t, input, got)
}
