package protocol

import "encoding/json"

type broadcastFrame struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// EncodeBroadcast encodes the outbound fan-out frame {"channel": ..., "data": ...}.
// data must be valid JSON; nil encodes as null.
func EncodeBroadcast(channel string, data json.RawMessage) ([]byte, error) {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return json.Marshal(broadcastFrame{Channel: channel, Data: data})
}
