package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{`"20m"`, 20 * time.Minute, false},
		{`"1h30m"`, 90 * time.Minute, false},
		{`1000000000`, time.Second, false},
		{`"1000"`, 1000, false},
		{`"soon"`, 0, true},
		{`true`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration)
		})
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	var v struct {
		Upload Duration `yaml:"upload"`
		Remote Duration `yaml:"remote"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("upload: 20m\nremote: 30000000000\n"), &v))
	assert.Equal(t, 20*time.Minute, v.Upload.Duration)
	assert.Equal(t, 30*time.Second, v.Remote.Duration)

	require.Error(t, yaml.Unmarshal([]byte("upload: [1, 2]\n"), &v))
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Duration{Duration: 90 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(b))
}

func TestParse(t *testing.T) {
	d, err := Parse("90s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = Parse("1000")
	require.NoError(t, err)
	assert.Equal(t, time.Microsecond, d)

	_, err = Parse("soon")
	assert.Error(t, err)
}
