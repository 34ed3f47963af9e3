package graph

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"teams-notify-api/internal/apperrors"
)

// User is the subset of a directory user the sender needs.
type User struct {
	ID          string
	DisplayName string
}

// ResolvedMention is a mention whose email address has been resolved to
// a directory user.
type ResolvedMention struct {
	UserID       string
	DisplayName  string
	EmailAddress string
}

// FindUserByEmail resolves a user by email address. A remote 404 is
// reported as a not-found failure naming the address.
func (c *Client) FindUserByEmail(ctx context.Context, accessToken, emailAddress, requestID string) (*User, error) {
	endpoint := "/users/" + url.PathEscape(emailAddress)
	data, err := c.Call(ctx, "GET", endpoint, accessToken, nil, requestID)
	if err != nil {
		var apiErr *apperrors.Error
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			c.log.WithFields(logrus.Fields{"email": emailAddress, "request_id": requestID}).Warn("USER_NOT_FOUND")
			return nil, apperrors.NotFound("User not found: %s", emailAddress)
		}
		return nil, err
	}

	c.log.WithFields(logrus.Fields{"email": emailAddress, "request_id": requestID}).Info("USER_FOUND")
	return &User{ID: stringField(data, "id"), DisplayName: stringField(data, "displayName")}, nil
}

// FindTeamIDByName resolves a joined team's id by display name.
func (c *Client) FindTeamIDByName(ctx context.Context, accessToken, teamName, requestID string) (string, error) {
	data, err := c.Call(ctx, "GET", "/me/joinedTeams", accessToken, nil, requestID)
	if err != nil {
		return "", err
	}

	for _, item := range listField(data) {
		team, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if stringField(team, "displayName") == teamName {
			c.log.WithFields(logrus.Fields{"team": teamName, "request_id": requestID}).Info("TEAM_FOUND")
			return stringField(team, "id"), nil
		}
	}

	c.log.WithFields(logrus.Fields{"team": teamName, "request_id": requestID}).Warn("TEAM_NOT_FOUND")
	return "", apperrors.NotFound("Team not found: %s", teamName)
}

// FindChannelIDByName resolves a channel's id within a team by display name.
func (c *Client) FindChannelIDByName(ctx context.Context, accessToken, teamID, channelName, requestID string) (string, error) {
	data, err := c.Call(ctx, "GET", "/teams/"+teamID+"/channels", accessToken, nil, requestID)
	if err != nil {
		return "", err
	}

	for _, item := range listField(data) {
		channel, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if stringField(channel, "displayName") == channelName {
			c.log.WithFields(logrus.Fields{"channel": channelName, "request_id": requestID}).Info("CHANNEL_FOUND")
			return stringField(channel, "id"), nil
		}
	}

	c.log.WithFields(logrus.Fields{"channel": channelName, "request_id": requestID}).Warn("CHANNEL_NOT_FOUND")
	return "", apperrors.NotFound("Channel not found: %s", channelName)
}

// FindOrCreateChat returns the id of an existing one-on-one chat with the
// target user, creating the chat only when none exists.
func (c *Client) FindOrCreateChat(ctx context.Context, accessToken, targetUserID, requestID string) (string, error) {
	data, err := c.Call(ctx, "GET", "/me/chats", accessToken, nil, requestID)
	if err != nil {
		return "", err
	}

	for _, item := range listField(data) {
		chat, ok := item.(map[string]interface{})
		if !ok || stringField(chat, "chatType") != "oneOnOne" {
			continue
		}
		members, _ := chat["members"].([]interface{})
		if len(members) != 2 {
			continue
		}
		for _, m := range members {
			member, ok := m.(map[string]interface{})
			if !ok {
				continue
			}
			user, _ := member["user"].(map[string]interface{})
			if user != nil && stringField(user, "id") == targetUserID {
				c.log.WithField("request_id", requestID).Info("CHAT_FOUND")
				return stringField(chat, "id"), nil
			}
		}
	}

	chatID, err := c.CreateChat(ctx, accessToken, targetUserID, requestID)
	if err != nil {
		return "", err
	}
	c.log.WithField("request_id", requestID).Info("CHAT_CREATED")
	return chatID, nil
}

// CreateChat creates a new one-on-one chat between the signed-in user and
// the target user.
func (c *Client) CreateChat(ctx context.Context, accessToken, targetUserID, requestID string) (string, error) {
	me, err := c.Call(ctx, "GET", "/me", accessToken, nil, requestID)
	if err != nil {
		return "", err
	}
	myUserID := stringField(me, "id")

	body := map[string]interface{}{
		"chatType": "oneOnOne",
		"members": []map[string]interface{}{
			conversationMember(myUserID),
			conversationMember(targetUserID),
		},
	}

	chat, err := c.Call(ctx, "POST", "/chats", accessToken, body, requestID)
	if err != nil {
		return "", err
	}
	return stringField(chat, "id"), nil
}

// PostChatMessage posts a message to a one-on-one chat. Chats carry no
// subject, unlike channels.
func (c *Client) PostChatMessage(ctx context.Context, accessToken, chatID, messageText, contentType string, mentions []ResolvedMention, requestID string) error {
	body := messageBody(messageText, contentType, mentions)
	_, err := c.Call(ctx, "POST", "/chats/"+chatID+"/messages", accessToken, body, requestID)
	return err
}

// PostChannelMessage posts a message to a team channel.
func (c *Client) PostChannelMessage(ctx context.Context, accessToken, teamID, channelID, messageText, contentType, subject string, mentions []ResolvedMention, requestID string) error {
	body := messageBody(messageText, contentType, mentions)
	body["subject"] = subject
	_, err := c.Call(ctx, "POST", "/teams/"+teamID+"/channels/"+channelID+"/messages", accessToken, body, requestID)
	return err
}

// messageBody builds a chatMessage payload, appending <at> markers to the
// message text for each mention.
func messageBody(messageText, contentType string, mentions []ResolvedMention) map[string]interface{} {
	text := messageText
	var mentionEntries []map[string]interface{}

	for i, m := range mentions {
		mentionEntries = append(mentionEntries, map[string]interface{}{
			"id":          i,
			"mentionText": "@" + m.DisplayName,
			"mentioned": map[string]interface{}{
				"user": map[string]interface{}{
					"id":          m.UserID,
					"displayName": m.DisplayName,
				},
			},
		})
		text += fmt.Sprintf(` <at id="%d">@%s</at>`, i, m.DisplayName)
	}

	body := map[string]interface{}{
		"body": map[string]interface{}{
			"contentType": contentType,
			"content":     text,
		},
	}
	if len(mentionEntries) > 0 {
		body["mentions"] = mentionEntries
	}
	return body
}

func conversationMember(userID string) map[string]interface{} {
	return map[string]interface{}{
		"@odata.type":     "#microsoft.graph.aadUserConversationMember",
		"roles":           []string{"owner"},
		"user@odata.bind": "https://graph.microsoft.com/v1.0/users/" + userID,
	}
}
