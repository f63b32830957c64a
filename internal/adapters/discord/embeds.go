package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	perr "rolesync/internal/platform/errors"
	pstrings "rolesync/internal/platform/strings"
	"rolesync/internal/services/allowlist/domain"
)

const (
	colorBrand   = 0x9b4dca
	colorSuccess = 0x00ff88
	colorError   = 0xff4757
	colorWarning = 0xffa502
)

// embed field values are capped at 1024 characters
const maxReason = 200

var printer = message.NewPrinter(language.English)

func congratsEmbed(community string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🎉 Congratulations!",
		Description: "You have passed the " + community + " allowlist quiz!",
		Color:       colorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Status", Value: "✅ Allowlisted", Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Welcome to " + community + "!"},
	}
}

func statusEmbed(community string, st domain.MemberStatus) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{Title: "🎮 " + community + " - Verification", Color: colorBrand}

	switch st.Kind {
	case domain.StatusUnregistered:
		e.Description = "❌ You have not registered on the quiz website yet."
		e.Color = colorError
		e.Fields = []*discordgo.MessageEmbedField{
			{Name: "Next Steps", Value: "Visit the website and login with Discord to take the quiz.", Inline: true},
		}
	case domain.StatusPending:
		e.Description = "⏳ You have not passed the quiz yet."
		e.Fields = []*discordgo.MessageEmbedField{
			{Name: "Next Steps", Value: "Visit the website to take/retry the quiz.", Inline: true},
		}
	default:
		e.Description = "✅ You have passed the allowlist quiz!"
		e.Color = colorSuccess
		e.Fields = []*discordgo.MessageEmbedField{
			{Name: "Role Status", Value: roleStatus(st), Inline: true},
		}
	}
	return e
}

func roleStatus(st domain.MemberStatus) string {
	switch st.Outcome {
	case domain.OutcomeGrantedNew:
		return "✅ Assigned!"
	case domain.OutcomeAlreadyGranted:
		return "✅ Already assigned"
	default:
		return "⚠️ " + sentence(pstrings.Truncate(st.Reason, maxReason))
	}
}

func statusErrorEmbed(community string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🎮 " + community + " - Verification",
		Description: "⚠️ Something went wrong while checking your status. Please try again later.",
		Color:       colorWarning,
	}
}

func sweepEmbed(rep domain.SweepReport, err error) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{Title: "✅ Sync Complete", Color: colorSuccess}
	switch {
	case perr.IsCode(err, perr.ErrorCodeTooManyRequests):
		return &discordgo.MessageEmbed{
			Title:       "⏳ Sync Already Running",
			Description: "Another sync is in progress. Try again when it finishes.",
			Color:       colorWarning,
		}
	case rep.Aborted:
		e.Title = "⚠️ Sync Interrupted"
		e.Color = colorWarning
	case err != nil:
		e.Title = "❌ Sync Failed"
		e.Description = "The sync stopped early; counts below are partial."
		e.Color = colorError
	}
	e.Fields = []*discordgo.MessageEmbedField{
		{Name: "✅ Newly Assigned", Value: printer.Sprintf("%d", rep.NewlyAssigned), Inline: true},
		{Name: "✔️ Already Had Role", Value: printer.Sprintf("%d", rep.AlreadyHad), Inline: true},
		{Name: "❌ Failed", Value: printer.Sprintf("%d", rep.Failed), Inline: true},
		{Name: "👻 Not in Server", Value: printer.Sprintf("%d", rep.NotInDomain), Inline: true},
	}
	if rep.RunID != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: "run " + rep.RunID}
	}
	return e
}

// sentence upper-cases the first letter of s
func sentence(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
