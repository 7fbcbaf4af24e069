package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrEthical07/goRelay/permission"
)

var (
	// ErrMalformed is returned when an inbound frame is not valid JSON.
	ErrMalformed = errors.New("malformed control message")
	// ErrInvalidShape is returned when a frame is valid JSON but not a control
	// message of a known action.
	ErrInvalidShape = errors.New("invalid control message shape")
	// ErrUnknownAction is returned for well-formed frames naming an action this
	// codec does not implement.
	ErrUnknownAction = errors.New("unknown control action")
)

// Action names.
const (
	ActionRefreshToken   = "refresh-token"
	ActionAddChannels    = "add-channels"
	ActionRemoveChannels = "remove-channels"
)

// Control is one parsed inbound control message.
type Control interface {
	Action() string
}

// RefreshToken replaces the session credential.
type RefreshToken struct {
	Token string
}

// AddChannels subscribes the session to Channels.
type AddChannels struct {
	Channels []string
	// Skipped counts non-string entries dropped from the request.
	Skipped int
}

// RemoveChannels unsubscribes the session from Channels.
type RemoveChannels struct {
	Channels []string
	Skipped  int
}

func (RefreshToken) Action() string   { return ActionRefreshToken }
func (AddChannels) Action() string    { return ActionAddChannels }
func (RemoveChannels) Action() string { return ActionRemoveChannels }

type frame struct {
	Action *string         `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type tokenData struct {
	Token *string `json:"token"`
}

type channelData struct {
	Channels json.RawMessage `json:"channels"`
}

// ParseControl decodes raw into a [Control] variant.
func ParseControl(raw []byte) (Control, error) {
	if !json.Valid(raw) {
		return nil, ErrMalformed
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidShape)
	}

	var f frame
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}
	if f.Action == nil {
		return nil, fmt.Errorf("%w: missing action", ErrInvalidShape)
	}

	switch *f.Action {
	case ActionRefreshToken:
		var d tokenData
		if err := decodeData(f.Data, &d); err != nil {
			return nil, err
		}
		if d.Token == nil {
			return nil, fmt.Errorf("%w: missing data.token", ErrInvalidShape)
		}
		return RefreshToken{Token: *d.Token}, nil
	case ActionAddChannels:
		names, skipped, err := channelList(f.Data)
		if err != nil {
			return nil, err
		}
		return AddChannels{Channels: names, Skipped: skipped}, nil
	case ActionRemoveChannels:
		names, skipped, err := channelList(f.Data)
		if err != nil {
			return nil, err
		}
		return RemoveChannels{Channels: names, Skipped: skipped}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, *f.Action)
	}
}

func decodeData(data json.RawMessage, v any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return fmt.Errorf("%w: data must be an object", ErrInvalidShape)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}
	return nil
}

// channelList extracts string entries from data.channels, which may be a JSON
// array or an object. Non-string entries are skipped one by one.
func channelList(data json.RawMessage) ([]string, int, error) {
	var d channelData
	if err := decodeData(data, &d); err != nil {
		return nil, 0, err
	}
	if !permission.Collection(d.Channels) {
		return nil, 0, fmt.Errorf("%w: data.channels must be an array or object", ErrInvalidShape)
	}
	values, err := permission.CollectionValues(d.Channels)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}

	names := make([]string, 0, len(values))
	skipped := 0
	for _, v := range values {
		var name *string
		if err := json.Unmarshal(v, &name); err != nil || name == nil {
			skipped++
			continue
		}
		names = append(names, *name)
	}
	return names, skipped, nil
}
