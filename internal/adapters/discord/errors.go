package discord

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"

	perr "rolesync/internal/platform/errors"
)

// discord json error codes we classify
const (
	codeUnknownGuild       = discordgo.ErrCodeUnknownGuild
	codeUnknownMember      = discordgo.ErrCodeUnknownMember
	codeUnknownRole        = discordgo.ErrCodeUnknownRole
	codeUnknownUser        = discordgo.ErrCodeUnknownUser
	codeMissingPermissions = discordgo.ErrCodeMissingPermissions
	codeCannotDM           = discordgo.ErrCodeCannotSendMessagesToThisUser
)

// mapError gives a discordgo error one of our codes; nil stays nil
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return perr.Wrap(err, perr.ErrorCodeTooManyRequests, msg)
	}

	var re *discordgo.RESTError
	if errors.As(err, &re) {
		return perr.Wrap(err, restCode(re), msg)
	}

	if errors.Is(err, context.Canceled) {
		return perr.Wrap(err, perr.ErrorCodeUnknown, msg)
	}
	// transport failures and deadlines
	return perr.Wrap(err, perr.ErrorCodeUnavailable, msg)
}

func restCode(re *discordgo.RESTError) perr.ErrorCode {
	code := 0
	if re.Message != nil {
		code = re.Message.Code
	}
	status := 0
	if re.Response != nil {
		status = re.Response.StatusCode
	}

	switch {
	case code == codeMissingPermissions, code == codeCannotDM, status == http.StatusForbidden:
		return perr.ErrorCodeForbidden
	case code == codeUnknownMember, code == codeUnknownUser, code == codeUnknownRole,
		code == codeUnknownGuild, status == http.StatusNotFound:
		return perr.ErrorCodeNotFound
	case status == http.StatusTooManyRequests:
		return perr.ErrorCodeTooManyRequests
	case status == http.StatusUnauthorized:
		return perr.ErrorCodeUnauthorized
	case status >= http.StatusInternalServerError:
		return perr.ErrorCodeUnavailable
	default:
		return perr.ErrorCodeInvalidArgument
	}
}
