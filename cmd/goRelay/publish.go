package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goRelay/bus"
	"github.com/MrEthical07/goRelay/permission"
)

type publishCommand struct {
	app *app

	Channel string        `long:"channel" required:"true" description:"Bus channel to publish on"`
	Users   []int64       `long:"user" description:"Permitted user id (repeatable)"`
	Groups  []string      `long:"group" description:"Group clause, comma separated ids with * as wildcard (repeatable)"`
	Data    string        `long:"data" default:"null" description:"JSON payload delivered to clients"`
	Timeout time.Duration `long:"timeout" default:"5s" description:"Publish timeout"`

	Bus busOptions `group:"Bus"`
}

func (c *publishCommand) envelope() (permission.Set, json.RawMessage, error) {
	if !json.Valid([]byte(c.Data)) {
		return permission.Set{}, nil, errors.New("data is not valid JSON")
	}
	set := permission.Set{UserIDs: permission.IDList(c.Users)}
	for _, raw := range c.Groups {
		clause, err := parseClause(raw)
		if err != nil {
			return permission.Set{}, nil, err
		}
		set.GroupClauses = append(set.GroupClauses, clause)
	}
	return set, json.RawMessage(c.Data), nil
}

func (c *publishCommand) Execute([]string) error {
	set, data, err := c.envelope()
	if err != nil {
		return err
	}

	client := c.Bus.client()
	defer client.Close()

	ctx, cancel := context.WithTimeout(c.app.ctx, c.Timeout)
	defer cancel()

	receivers, err := bus.NewPublisher(client).Publish(ctx, c.Channel, set, data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.app.stdout, "published to %s (%d bridge subscribers)\n", c.Channel, receivers)
	return err
}
