package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"teams-notify-api/internal/apperrors"
	"teams-notify-api/internal/graph"
	"teams-notify-api/internal/models"
)

// MessengerService executes the business operation selected by a
// request's mode. Handlers return a human-readable success message or
// propagate a taxonomy error; they never build response envelopes.
type MessengerService interface {
	SendDirectMessages(ctx context.Context, req *models.DirectMessageRequest, requestID string) (string, error)
	SendChannelMessage(ctx context.Context, req *models.ChannelMessageRequest, requestID string) (string, error)
	RotateRefreshToken(ctx context.Context, requestID string) (string, error)
}

// TokenSource supplies access tokens and rotates refresh tokens.
type TokenSource interface {
	AccessToken(ctx context.Context, requestID string) (string, error)
	Rotate(ctx context.Context, requestID string) error
}

type messengerService struct {
	graph  *graph.Client
	tokens TokenSource
	log    *logrus.Logger
}

// NewMessengerService wires the Graph client and token source into a
// messenger service.
func NewMessengerService(graphClient *graph.Client, tokens TokenSource, log *logrus.Logger) MessengerService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &messengerService{graph: graphClient, tokens: tokens, log: log}
}

// SendDirectMessages delivers the message to each recipient's one-on-one
// chat (mode 1).
func (s *messengerService) SendDirectMessages(ctx context.Context, req *models.DirectMessageRequest, requestID string) (string, error) {
	s.log.WithFields(logrus.Fields{
		"recipients": len(req.EmailAddresses),
		"request_id": requestID,
	}).Info("DM_SEND_START")

	accessToken, err := s.tokens.AccessToken(ctx, requestID)
	if err != nil {
		return "", err
	}

	mentions, err := s.resolveMentions(ctx, accessToken, req.Mentions, requestID)
	if err != nil {
		return "", err
	}

	for _, emailAddress := range req.EmailAddresses {
		user, err := s.graph.FindUserByEmail(ctx, accessToken, emailAddress, requestID)
		if err != nil {
			return "", err
		}
		chatID, err := s.graph.FindOrCreateChat(ctx, accessToken, user.ID, requestID)
		if err != nil {
			return "", err
		}
		if err := s.graph.PostChatMessage(ctx, accessToken, chatID, req.MessageText, req.ContentType, mentions, requestID); err != nil {
			return "", err
		}
	}

	s.log.WithFields(logrus.Fields{
		"recipients": len(req.EmailAddresses),
		"request_id": requestID,
	}).Info("DM_SEND_SUCCESS")

	return fmt.Sprintf("Messages sent to %d users", len(req.EmailAddresses)), nil
}

// SendChannelMessage posts the message to a team channel resolved by
// display names (mode 2).
func (s *messengerService) SendChannelMessage(ctx context.Context, req *models.ChannelMessageRequest, requestID string) (string, error) {
	s.log.WithFields(logrus.Fields{
		"team":       req.TeamName,
		"channel":    req.ChannelName,
		"request_id": requestID,
	}).Info("CHANNEL_SEND_START")

	accessToken, err := s.tokens.AccessToken(ctx, requestID)
	if err != nil {
		return "", err
	}

	teamID, err := s.graph.FindTeamIDByName(ctx, accessToken, req.TeamName, requestID)
	if err != nil {
		return "", err
	}
	channelID, err := s.graph.FindChannelIDByName(ctx, accessToken, teamID, req.ChannelName, requestID)
	if err != nil {
		return "", err
	}
	mentions, err := s.resolveMentions(ctx, accessToken, req.Mentions, requestID)
	if err != nil {
		return "", err
	}

	if err := s.graph.PostChannelMessage(ctx, accessToken, teamID, channelID, req.MessageText, req.ContentType, req.Subject, mentions, requestID); err != nil {
		return "", err
	}

	s.log.WithFields(logrus.Fields{
		"team":       req.TeamName,
		"channel":    req.ChannelName,
		"request_id": requestID,
	}).Info("CHANNEL_SEND_SUCCESS")

	return fmt.Sprintf("Message posted to %s/%s", req.TeamName, req.ChannelName), nil
}

// RotateRefreshToken performs a token rotation without sending anything
// (mode 3).
func (s *messengerService) RotateRefreshToken(ctx context.Context, requestID string) (string, error) {
	s.log.WithField("request_id", requestID).Info("TOKEN_REFRESH_START")

	if err := s.tokens.Rotate(ctx, requestID); err != nil {
		return "", err
	}
	return "Refresh token updated successfully", nil
}

// resolveMentions resolves each mention's email address to a directory
// user. Taxonomy errors from the lookup pass through untouched; anything
// else is a business-logic failure.
func (s *messengerService) resolveMentions(ctx context.Context, accessToken string, mentions []models.Mention, requestID string) ([]graph.ResolvedMention, error) {
	if len(mentions) == 0 {
		return nil, nil
	}

	resolved := make([]graph.ResolvedMention, 0, len(mentions))
	for _, mention := range mentions {
		if mention.MentionType != "user" || mention.EmailAddress == "" {
			continue
		}
		user, err := s.graph.FindUserByEmail(ctx, accessToken, mention.EmailAddress, requestID)
		if err != nil {
			var apiErr *apperrors.Error
			if errors.As(err, &apiErr) {
				return nil, err
			}
			return nil, apperrors.BusinessLogic("Mention processing failed: %s", err)
		}
		resolved = append(resolved, graph.ResolvedMention{
			UserID:       user.ID,
			DisplayName:  user.DisplayName,
			EmailAddress: mention.EmailAddress,
		})
	}

	if len(resolved) > 0 {
		s.log.WithFields(logrus.Fields{
			"count":      len(resolved),
			"request_id": requestID,
		}).Info("MENTIONS_PROCESSED")
	}
	return resolved, nil
}
