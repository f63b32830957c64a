package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"rolesync/internal/services/allowlist/domain"
)

type dmAPI interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Messenger implements domain.Messenger with a direct message embed
type Messenger struct {
	api       dmAPI
	community string
}

// NewMessenger adapts a session
func NewMessenger(s *discordgo.Session, community string) *Messenger {
	return &Messenger{api: s, community: community}
}

// Congratulate implements domain.Messenger
func (m *Messenger) Congratulate(ctx context.Context, mb domain.Membership) error {
	ch, err := m.api.UserChannelCreate(mb.Identity, discordgo.WithContext(ctx))
	if err != nil {
		return mapError(err, "open dm channel")
	}
	_, err = m.api.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{congratsEmbed(m.community)},
	}, discordgo.WithContext(ctx))
	return mapError(err, "send congratulations")
}
