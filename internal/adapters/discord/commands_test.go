package discord

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"

	perr "rolesync/internal/platform/errors"
	"rolesync/internal/platform/testkit"
	"rolesync/internal/services/allowlist/domain"
)

type fakeChat struct {
	sendErr error
	editErr error

	sends []*discordgo.MessageSend
	edits []*discordgo.MessageEdit
}

func (f *fakeChat) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sends = append(f.sends, data)
	return &discordgo.Message{ID: "progress", ChannelID: channelID}, nil
}

func (f *fakeChat) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.edits = append(f.edits, m)
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

type fakePerms struct {
	perms int64
	err   error
}

func (f fakePerms) MessagePermissions(*discordgo.Message) (int64, error) { return f.perms, f.err }

type fakePorts struct {
	status    domain.MemberStatus
	statusErr error
	report    domain.SweepReport
	sweepErr  error

	asked  []string
	sweeps int
}

func (f *fakePorts) Status(_ context.Context, identity string) (domain.MemberStatus, error) {
	f.asked = append(f.asked, identity)
	return f.status, f.statusErr
}

func (f *fakePorts) Sweep(context.Context) (domain.SweepReport, error) {
	f.sweeps++
	return f.report, f.sweepErr
}

func newCommands(chat *fakeChat, perms permissionSource, ports *fakePorts) *Commands {
	return &Commands{
		api:    chat,
		perms:  perms,
		status: ports,
		sweep:  ports,
		cfg:    Config{GuildID: testGuild, Prefix: "!", Community: "Elite", AdminRoleID: "700000000000000001"},
	}
}

func msg(content string, roles ...string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "m-1",
		ChannelID: "c-1",
		GuildID:   testGuild,
		Content:   content,
		Author:    &discordgo.User{ID: testUser},
		Member:    &discordgo.Member{Roles: roles},
	}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	cases := []struct {
		prefix, in string
		want       string
		ok         bool
	}{
		{"!", "!verify", "verify", true},
		{"!", "  !SYNC now", "sync", true},
		{"?", "?verify", "verify", true},
		{"", "!verify", "verify", true},
		{"!", "verify", "", false},
		{"!", "!", "", false},
		{"!", "hello !verify", "", false},
	}
	for _, tc := range cases {
		got, ok := parseCommand(tc.prefix, tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("parseCommand(%q, %q) = %q, %v", tc.prefix, tc.in, got, ok)
		}
	}
}

func TestCommands_IgnoresBotsAndChatter(t *testing.T) {
	t.Parallel()

	chat, ports := &fakeChat{}, &fakePorts{}
	c := newCommands(chat, fakePerms{}, ports)

	bot := msg("!verify")
	bot.Author.Bot = true
	c.Handle(context.Background(), bot)
	c.Handle(context.Background(), msg("good morning"))
	c.Handle(context.Background(), msg("!unknown"))
	c.Handle(context.Background(), &discordgo.Message{Content: "!verify"})

	if len(chat.sends) != 0 || len(ports.asked) != 0 || ports.sweeps != 0 {
		t.Fatalf("sends=%d asked=%v sweeps=%d", len(chat.sends), ports.asked, ports.sweeps)
	}
}

func TestCommands_Verify(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{}
	ports := &fakePorts{status: domain.MemberStatus{
		Identity: testUser,
		Kind:     domain.StatusPassedAndGranted,
		Outcome:  domain.OutcomeGrantedNew,
	}}
	c := newCommands(chat, fakePerms{}, ports)

	c.Handle(context.Background(), msg("!verify"))

	if len(ports.asked) != 1 || ports.asked[0] != testUser {
		t.Fatalf("asked = %v", ports.asked)
	}
	if len(chat.sends) != 1 {
		t.Fatalf("sends = %d", len(chat.sends))
	}
	sent := chat.sends[0]
	if sent.Reference == nil || sent.Reference.MessageID != "m-1" {
		t.Fatalf("reply must reference the command: %+v", sent.Reference)
	}
	testkit.MustContain(t, sent.Embeds[0].Fields[0].Value, "Assigned!")
}

func TestCommands_VerifyStoreFailureStillReplies(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{}
	c := newCommands(chat, fakePerms{}, &fakePorts{statusErr: perr.Unavailablef("db down")})

	c.Handle(context.Background(), msg("!verify"))

	if len(chat.sends) != 1 {
		t.Fatalf("sends = %d", len(chat.sends))
	}
	testkit.MustContain(t, chat.sends[0].Embeds[0].Description, "Something went wrong")
}

func TestCommands_SyncRequiresAdmin(t *testing.T) {
	t.Parallel()

	chat, ports := &fakeChat{}, &fakePorts{}
	c := newCommands(chat, fakePerms{perms: discordgo.PermissionSendMessages}, ports)

	c.Handle(context.Background(), msg("!sync"))

	if ports.sweeps != 0 {
		t.Fatal("non-admin must not sweep")
	}
	if len(chat.sends) != 1 {
		t.Fatalf("sends = %d", len(chat.sends))
	}
	testkit.MustContain(t, chat.sends[0].Content, "administrator")
}

func TestCommands_SyncAdminRole(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{}
	ports := &fakePorts{report: domain.SweepReport{RunID: "r-9", NewlyAssigned: 2, Total: 2}}
	c := newCommands(chat, fakePerms{err: errors.New("no state")}, ports)

	c.Handle(context.Background(), msg("!sync", "700000000000000001"))

	if ports.sweeps != 1 {
		t.Fatalf("sweeps = %d", ports.sweeps)
	}
	if len(chat.sends) != 1 {
		t.Fatalf("sends = %d", len(chat.sends))
	}
	testkit.MustContain(t, chat.sends[0].Content, "Syncing roles")

	if len(chat.edits) != 1 {
		t.Fatalf("edits = %d", len(chat.edits))
	}
	edit := chat.edits[0]
	if edit.ID != "progress" || edit.Content == nil || *edit.Content != "" {
		t.Fatalf("edit = %+v", edit)
	}
	if edit.Embeds == nil || (*edit.Embeds)[0].Title != "✅ Sync Complete" {
		t.Fatalf("edit embeds = %+v", edit.Embeds)
	}
}

func TestCommands_SyncAdministratorPermission(t *testing.T) {
	t.Parallel()

	chat, ports := &fakeChat{}, &fakePorts{}
	c := newCommands(chat, fakePerms{perms: discordgo.PermissionAdministrator}, ports)

	c.Handle(context.Background(), msg("!sync"))

	if ports.sweeps != 1 {
		t.Fatalf("sweeps = %d", ports.sweeps)
	}
}

func TestCommands_SyncFallsBackWhenEditFails(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{editErr: errors.New("edit failed")}
	ports := &fakePorts{sweepErr: perr.Newf(perr.ErrorCodeTooManyRequests, "sweep already running")}
	c := newCommands(chat, fakePerms{perms: discordgo.PermissionAdministrator}, ports)

	c.Handle(context.Background(), msg("!sync"))

	if len(chat.sends) != 2 {
		t.Fatalf("sends = %d", len(chat.sends))
	}
	testkit.MustContain(t, chat.sends[1].Embeds[0].Title, "Already Running")
}

func TestCommands_SyncRefusedFromForeignGuild(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*Commands, *discordgo.Message){
		"other guild":          func(_ *Commands, m *discordgo.Message) { m.GuildID = "999999999999999999" },
		"direct message":       func(_ *Commands, m *discordgo.Message) { m.GuildID = "" },
		"guild not configured": func(c *Commands, _ *discordgo.Message) { c.cfg.GuildID = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			chat, ports := &fakeChat{}, &fakePorts{}
			c := newCommands(chat, fakePerms{perms: discordgo.PermissionAdministrator}, ports)
			m := msg("!sync", "700000000000000001")
			mutate(c, m)

			c.Handle(context.Background(), m)

			if ports.sweeps != 0 {
				t.Fatalf("sweeps = %d", ports.sweeps)
			}
			if len(chat.sends) != 1 {
				t.Fatalf("sends = %d", len(chat.sends))
			}
			testkit.MustContain(t, chat.sends[0].Content, "administrator")
		})
	}
}
