package main

import (
	"fmt"
	"time"

	"github.com/MrEthical07/goRelay/jwt"
)

type tokenCommand struct {
	app *app

	User   int64         `long:"user" env:"GORELAY_TOKEN_USER" required:"true" description:"User id the credential identifies"`
	Groups []int64       `long:"group" description:"Group id (repeatable)"`
	TTL    time.Duration `long:"ttl" env:"GORELAY_TOKEN_TTL" default:"1h" description:"Credential lifetime"`

	Token tokenOptions `group:"Credentials"`
}

func (c *tokenCommand) Execute([]string) error {
	alg := ""
	if len(c.Token.Algorithms) > 0 {
		alg = c.Token.Algorithms[0]
	}
	issuer, err := jwt.NewIssuer(jwt.IssuerConfig{
		Secret:    []byte(c.Token.Secret),
		Algorithm: alg,
		TTL:       c.TTL,
	})
	if err != nil {
		return err
	}
	raw, err := issuer.Issue(c.User, c.Groups)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.app.stdout, raw)
	return err
}
