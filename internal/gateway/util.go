package gateway

import (
	"encoding/json"
	"strings"
)

// mustMarshal marshals v to json.RawMessage, panicking on error.
// Only for statically-known types that cannot fail.
func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("gateway: mustMarshal: " + err.Error())
	}
	return data
}

// withGatewayQuery adds the version and encoding parameters to a resume URL,
// which the server hands out bare.
func withGatewayQuery(url string) string {
	if strings.Contains(url, "?") {
		return url
	}
	return strings.TrimSuffix(url, "/") + "/?v=10&encoding=json"
}
