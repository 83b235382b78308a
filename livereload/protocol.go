package livereload

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ProtocolOfficial7 is the reload protocol spoken by the bundled client script.
const ProtocolOfficial7 = "http://livereload.com/protocols/official-7"

var supportedProtocols = []string{ProtocolOfficial7}

const (
	commandHello  = "hello"
	commandInfo   = "info"
	commandReload = "reload"
	commandAlert  = "alert"
	commandPing   = "ping"
	commandPong   = "pong"
)

// clientMessage is any message sent by a browser.
type clientMessage struct {
	Command   string   `json:"command"`
	Protocols []string `json:"protocols,omitempty"`
	URL       string   `json:"url,omitempty"`
}

type infoMessage struct {
	Command         string `json:"command"`
	ProtocolVersion string `json:"protocolVersion"`
	ServerID        string `json:"serverId"`
	ServerName      string `json:"serverName"`
}

type reloadMessage struct {
	Command string `json:"command"`
	Path    string `json:"path"`
	LiveCSS bool   `json:"liveCSS"`
	LiveImg bool   `json:"liveImg"`
	DelayMs int64  `json:"delayMs"`
}

type alertMessage struct {
	Command string `json:"command"`
	Message string `json:"message"`
}

type pongMessage struct {
	Command string `json:"command"`
}

func parseClientMessage(data []byte) (*clientMessage, error) {
	msg := &clientMessage{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, errors.Wrap(err, "malformed message")
	}
	if msg.Command == "" {
		return nil, errors.New("message without command")
	}
	return msg, nil
}

// negotiate picks the first protocol offered by the client that the server supports.
func negotiate(offered []string) (string, bool) {
	for _, protocol := range offered {
		for _, supported := range supportedProtocols {
			if protocol == supported {
				return protocol, true
			}
		}
	}
	return "", false
}
