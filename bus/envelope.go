package bus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrEthical07/goRelay/permission"
)

var (
	// ErrMalformed is returned when a payload is not valid JSON.
	ErrMalformed = errors.New("malformed bus payload")
	// ErrInvalidShape is returned when a payload is JSON but not an envelope.
	ErrInvalidShape = errors.New("invalid bus envelope shape")
)

// Message is one envelope received on a channel.
type Message struct {
	Channel     string
	Permissions permission.Set
	Data        json.RawMessage
}

type rawEnvelope struct {
	Permissions json.RawMessage `json:"permissions"`
	Data        json.RawMessage `json:"data"`
}

type wirePermissions struct {
	UserIDs  permission.IDList  `json:"user_ids"`
	GroupIDs permission.Clauses `json:"group_ids"`
}

type wireEnvelope struct {
	Permissions wirePermissions `json:"permissions"`
	Data        json.RawMessage `json:"data"`
}

type rawPermissions struct {
	UserIDs  json.RawMessage `json:"user_ids"`
	GroupIDs json.RawMessage `json:"group_ids"`
}

// ParseEnvelope decodes payload received on channel.
func ParseEnvelope(channel string, payload []byte) (Message, error) {
	if !json.Valid(payload) {
		return Message{}, ErrMalformed
	}
	if !isObject(payload) {
		return Message{}, fmt.Errorf("%w: not an object", ErrInvalidShape)
	}

	var env rawEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}
	if env.Data == nil {
		return Message{}, fmt.Errorf("%w: missing data", ErrInvalidShape)
	}
	if !isObject(env.Permissions) {
		return Message{}, fmt.Errorf("%w: permissions must be an object", ErrInvalidShape)
	}

	var perms rawPermissions
	if err := json.Unmarshal(env.Permissions, &perms); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}
	if !permission.Collection(perms.UserIDs) || !permission.Collection(perms.GroupIDs) {
		return Message{}, fmt.Errorf("%w: user_ids and group_ids must be collections", ErrInvalidShape)
	}

	var set permission.Set
	if err := json.Unmarshal(env.Permissions, &set); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}

	return Message{Channel: channel, Permissions: set, Data: env.Data}, nil
}

// EncodeEnvelope is the inverse of [ParseEnvelope].
func EncodeEnvelope(set permission.Set, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode envelope data: %w", err)
	}

	userIDs := set.UserIDs
	if userIDs == nil {
		userIDs = permission.IDList{}
	}
	clauses := set.GroupClauses
	if clauses == nil {
		clauses = permission.Clauses{}
	}

	return json.Marshal(wireEnvelope{
		Permissions: wirePermissions{UserIDs: userIDs, GroupIDs: clauses},
		Data:        raw,
	})
}

func isObject(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{'
}
