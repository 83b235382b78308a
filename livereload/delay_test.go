package livereload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseDelay(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Delay
		wantErr bool
	}{
		{name: "empty", input: "", want: Immediate},
		{name: "immediate", input: "immediate", want: Immediate},
		{name: "forever", input: "Forever", want: Forever},
		{name: "zero seconds", input: "0", want: Immediate},
		{name: "seconds", input: "2", want: After(2 * time.Second)},
		{name: "fractional seconds", input: "0.25", want: After(250 * time.Millisecond)},
		{name: "duration", input: "1500ms", want: After(1500 * time.Millisecond)},
		{name: "negative", input: "-1", wantErr: true},
		{name: "negative duration", input: "-1s", wantErr: true},
		{name: "garbage", input: "soon", wantErr: true},
		{name: "infinity", input: "inf", wantErr: true},
		{name: "negative infinity", input: "-Inf", wantErr: true},
		{name: "not a number", input: "NaN", wantErr: true},
		{name: "overflowing seconds", input: "1e30", wantErr: true},
		{name: "out of float range", input: "1e400", wantErr: true},
		{name: "largest seconds", input: "9223372036", want: Seconds(9223372036)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := require.New(t)

			got, err := ParseDelay(test.input)
			if test.wantErr {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(test.want, got)
		})
	}
}

func TestDelay_String(t *testing.T) {
	assert := require.New(t)

	assert.Equal("immediate", Immediate.String())
	assert.Equal("forever", Forever.String())
	assert.Equal("2s", After(2*time.Second).String())
	assert.Equal(Immediate, After(-time.Second))
	assert.True(Delay{}.IsImmediate())
	assert.Equal(time.Duration(0), Forever.Duration())
}

func TestDelay_YAML(t *testing.T) {
	assert := require.New(t)

	var v struct {
		Delays []Delay `yaml:"delays"`
	}
	assert.NoError(yaml.Unmarshal([]byte("delays: [0, 1.5, forever, 200ms]"), &v))
	assert.Equal([]Delay{Immediate, After(1500 * time.Millisecond), Forever, After(200 * time.Millisecond)}, v.Delays)

	assert.Error(yaml.Unmarshal([]byte("delays: [[1]]"), &v))

	out, err := yaml.Marshal(map[string]Delay{"delay": Forever})
	assert.NoError(err)
	assert.Equal("delay: forever\n", string(out))
}

func TestMinDelay(t *testing.T) {
	tests := []struct {
		name   string
		delays []Delay
		want   time.Duration
		wantOk bool
	}{
		{name: "none", delays: nil, wantOk: false},
		{name: "only forever", delays: []Delay{Forever, Forever}, wantOk: false},
		{name: "immediate wins", delays: []Delay{After(2 * time.Second), Immediate}, want: 0, wantOk: true},
		{name: "minimum", delays: []Delay{After(3 * time.Second), Forever, After(time.Second)}, want: time.Second, wantOk: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := require.New(t)

			got, ok := minDelay(test.delays)
			assert.Equal(test.wantOk, ok)
			assert.Equal(test.want, got)
		})
	}
}
