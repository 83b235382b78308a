package livereload

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseClientMessage(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		command string
		wantErr bool
	}{
		{name: "hello", data: `{"command":"hello","protocols":["http://livereload.com/protocols/official-7"]}`, command: commandHello},
		{name: "info", data: `{"command":"info","url":"http://localhost/"}`, command: commandInfo},
		{name: "no command", data: `{"protocols":[]}`, wantErr: true},
		{name: "not json", data: `!`, wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := require.New(t)

			msg, err := parseClientMessage([]byte(test.data))
			if test.wantErr {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(test.command, msg.Command)
		})
	}
}

func TestNegotiate(t *testing.T) {
	assert := require.New(t)

	version, ok := negotiate([]string{"http://livereload.com/protocols/official-6", ProtocolOfficial7})
	assert.True(ok)
	assert.Equal(ProtocolOfficial7, version)

	_, ok = negotiate([]string{"http://livereload.com/protocols/connection-check-1"})
	assert.False(ok)

	_, ok = negotiate(nil)
	assert.False(ok)
}

func TestEvent_Path(t *testing.T) {
	assert := require.New(t)

	assert.Equal("*", (&Event{}).Path())
	assert.Equal("a.css", (&Event{Paths: []string{"a.css"}}).Path())
	assert.Equal("*", (&Event{Paths: []string{"a.css", "b.css"}}).Path())
	assert.Equal("restart", EventRestart.String())
}
