package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	perr "rolesync/internal/platform/errors"
	"rolesync/internal/platform/net/http/bind"
	"rolesync/internal/services/allowlist/domain"
)

// DefaultFeedChannel is the NOTIFY channel the attempts trigger publishes on
const DefaultFeedChannel = "attempts_passed"

var channelRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// payload mirrors the realtime insert shape: {"type":"INSERT","table":"attempts","record":{...}}
type payload struct {
	Type   string  `json:"type"`
	Table  string  `json:"table"`
	Record *record `json:"record" validate:"required"`
}

type record struct {
	DiscordID flexID `json:"discord_id" validate:"omitempty,snowflake"`
	Passed    bool   `json:"passed"`
}

// flexID accepts a JSON string, number or null
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, string(b) == "null":
		*f = ""
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		if _, err := strconv.ParseUint(n.String(), 10, 64); err != nil {
			return fmt.Errorf("discord_id %s is not an unsigned integer", n)
		}
		*f = flexID(n.String())
		return nil
	}
}

// DecodeEvent turns a NOTIFY payload into a ChangeEvent. A payload without a record or
// with a malformed identity is an error; a record without an identity decodes to an
// empty Identity and is left to the caller to drop
func DecodeEvent(raw string) (domain.ChangeEvent, error) {
	p, err := bind.Decode[payload](strings.NewReader(raw), false)
	if err != nil {
		return domain.ChangeEvent{}, perr.WithOp(err, "decode change event")
	}
	return domain.ChangeEvent{Identity: string(p.Record.DiscordID), Passed: p.Record.Passed}, nil
}

// InstallFeed implements Storage. It (re)creates the trigger that publishes every attempts
// insert on channel; safe to run repeatedly. Bind the repo to a transaction so the function
// and trigger land together
func (s *pg) InstallFeed(ctx context.Context, channel string) error {
	if !channelRe.MatchString(channel) {
		return perr.InvalidArgf("invalid feed channel %q", channel)
	}
	stmts := []string{
		`CREATE OR REPLACE FUNCTION rolesync_notify_attempt() RETURNS trigger
		LANGUAGE plpgsql AS $$
		BEGIN
			PERFORM pg_notify(TG_ARGV[0], json_build_object(
				'type', TG_OP,
				'table', TG_TABLE_NAME,
				'record', json_build_object('discord_id', NEW.discord_id, 'passed', NEW.passed)
			)::text);
			RETURN NEW;
		END
		$$`,
		`DROP TRIGGER IF EXISTS rolesync_attempts_notify ON attempts`,
		fmt.Sprintf(`CREATE TRIGGER rolesync_attempts_notify
		AFTER INSERT ON attempts
		FOR EACH ROW EXECUTE FUNCTION rolesync_notify_attempt('%s')`, channel),
	}

	for _, sql := range stmts {
		if _, err := s.q.Exec(ctx, sql); err != nil {
			return perr.FromPostgres(err, "install change feed")
		}
	}
	return nil
}
