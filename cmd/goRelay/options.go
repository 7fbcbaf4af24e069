package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/MrEthical07/goRelay"
	"github.com/MrEthical07/goRelay/permission"
	"github.com/redis/go-redis/v9"
)

type busOptions struct {
	RedisAddr     string `long:"redis-addr" env:"GORELAY_REDIS_ADDR" default:"127.0.0.1:6379" description:"Redis address (host:port)"`
	RedisPassword string `long:"redis-password" env:"GORELAY_REDIS_PASSWORD" description:"Redis password"`
	RedisDB       int    `long:"redis-db" env:"GORELAY_REDIS_DB" default:"0" description:"Redis database number"`
}

func (o busOptions) client() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     o.RedisAddr,
		Password: o.RedisPassword,
		DB:       o.RedisDB,
	})
}

type tokenOptions struct {
	Secret     string   `long:"secret" env:"GORELAY_SECRET" description:"Shared HMAC secret credentials are signed with"`
	Algorithms []string `long:"algorithm" env:"GORELAY_ALGORITHMS" env-delim:"," default:"HS256" description:"Accepted signing algorithms"`
}

// newLogger builds the process logger. Verbosity follows goRelay.LevelForVerbosity.
func newLogger(w io.Writer, format string, verbosity int) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       goRelay.LevelForVerbosity(verbosity),
		ReplaceAttr: renameTrace,
	}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func renameTrace(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok && level <= goRelay.LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}

// parseClause turns "3,4" into one group clause. "*" is the wildcard group.
func parseClause(raw string) (permission.IDList, error) {
	var clause permission.IDList
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == "*" {
			clause = append(clause, permission.Wildcard)
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("group clause %q: %w", raw, err)
		}
		clause = append(clause, id)
	}
	if len(clause) == 0 {
		return nil, fmt.Errorf("group clause %q is empty", raw)
	}
	return clause, nil
}
