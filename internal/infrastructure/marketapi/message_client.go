package marketapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"bibomarket/internal/domain/entity"
	"bibomarket/internal/domain/service"
	"bibomarket/pkg/errors"
	"bibomarket/pkg/logger"
)

// MsgDeleteForEveryoneForbidden is returned when the backend refuses a
// delete-for-everyone with 403.
const MsgDeleteForEveryoneForbidden = "You are not authorized to delete this message for everyone"

// UnknownPartnerName is used for partner records built locally.
const UnknownPartnerName = "User"

type MessageClient struct {
	*Client
}

func NewMessageClient(client *Client) service.MessageService {
	return &MessageClient{Client: client}
}

type conversationsResponse struct {
	Conversations []*entity.Conversation `json:"conversations"`
}

type countResponse struct {
	Count         *int `json:"count"`
	UnreadCount   *int `json:"unreadCount"`
	ModifiedCount *int `json:"modifiedCount"`
}

func (r countResponse) value() int {
	switch {
	case r.Count != nil:
		return *r.Count
	case r.UnreadCount != nil:
		return *r.UnreadCount
	case r.ModifiedCount != nil:
		return *r.ModifiedCount
	}
	return 0
}

type messagesResponse struct {
	Messages []*entity.Message `json:"messages"`
}

func (c *MessageClient) ListConversations(ctx context.Context) ([]*entity.Conversation, error) {
	var raw json.RawMessage
	req := request{endpoint: "messages.conversations", method: http.MethodGet, path: "/messages/conversations"}
	if err := c.do(ctx, req, &raw); err != nil {
		return nil, err
	}

	if isArray(raw) {
		var conversations []*entity.Conversation
		if err := json.Unmarshal(raw, &conversations); err != nil {
			return nil, errors.MalformedResponse(err)
		}
		return conversations, nil
	}

	var resp conversationsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.MalformedResponse(err)
	}
	return resp.Conversations, nil
}

func (c *MessageClient) ListMessages(ctx context.Context, partnerID string) (*entity.Thread, error) {
	if partnerID == "" {
		return nil, errors.Validation("Select a conversation first")
	}

	var thread entity.Thread
	req := request{
		endpoint: "messages.with",
		method:   http.MethodGet,
		path:     "/messages/with/" + url.PathEscape(partnerID),
	}
	if err := c.do(ctx, req, &thread); err != nil {
		return nil, err
	}

	if thread.Partner == nil || thread.Partner.ID == "" {
		logger.Warn("ListMessages: partner profile missing for %s, using a local record", partnerID)
		thread.Partner = &entity.Partner{
			ID:          partnerID,
			Name:        UnknownPartnerName,
			Synthesized: true,
		}
	}
	if thread.Messages == nil {
		thread.Messages = []*entity.Message{}
	}
	return &thread, nil
}

func (c *MessageClient) Send(ctx context.Context, input service.SendMessageInput) (*entity.Message, error) {
	if input.ReceiverID == "" {
		return nil, errors.Validation("Select a conversation first")
	}
	if strings.TrimSpace(input.Content) == "" && input.Media == nil {
		return nil, errors.Validation("Message cannot be empty")
	}

	body, contentType, err := encodeSendForm(input)
	if err != nil {
		return nil, err
	}

	var message entity.Message
	req := request{
		endpoint:    "messages.send",
		method:      http.MethodPost,
		path:        "/messages/send",
		body:        body,
		contentType: contentType,
	}
	if err := c.do(ctx, req, &message); err != nil {
		return nil, err
	}
	if message.ID == "" {
		return nil, errors.MalformedResponse(fmt.Errorf("created message has no id"))
	}
	return &message, nil
}

func encodeSendForm(input service.SendMessageInput) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	if err := w.WriteField("receiverId", input.ReceiverID); err != nil {
		return nil, "", errors.Internal("Failed to encode message", err)
	}
	if err := w.WriteField("content", input.Content); err != nil {
		return nil, "", errors.Internal("Failed to encode message", err)
	}

	if input.Media != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="media"; filename=%q`, input.Media.Name))
		header.Set("Content-Type", input.Media.ContentType)

		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", errors.Internal("Failed to encode attachment", err)
		}
		src, err := input.Media.Open()
		if err != nil {
			return nil, "", errors.BadRequest("Unable to read the attached file", err)
		}
		_, err = io.Copy(part, src)
		src.Close()
		if err != nil {
			return nil, "", errors.BadRequest("Unable to read the attached file", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", errors.Internal("Failed to encode message", err)
	}
	return buf, w.FormDataContentType(), nil
}

func (c *MessageClient) MarkAllRead(ctx context.Context, partnerID string) (int, error) {
	var resp countResponse
	req := request{
		endpoint: "messages.read_all",
		method:   http.MethodPatch,
		path:     "/messages/read/all/" + url.PathEscape(partnerID),
	}
	if err := c.do(ctx, req, &resp); err != nil {
		if errors.Is(err, errors.CodeMalformedResponse) {
			return 0, nil
		}
		return 0, err
	}
	return resp.value(), nil
}

func (c *MessageClient) MarkRead(ctx context.Context, messageID string) error {
	req := request{
		endpoint: "messages.read",
		method:   http.MethodPatch,
		path:     "/messages/" + url.PathEscape(messageID) + "/read",
	}
	return c.do(ctx, req, nil)
}

func (c *MessageClient) Update(ctx context.Context, messageID, content string) (*entity.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.Validation("Message cannot be empty")
	}

	req, err := jsonRequest("messages.update", http.MethodPut,
		"/messages/"+url.PathEscape(messageID), map[string]string{"content": content})
	if err != nil {
		return nil, err
	}

	var message entity.Message
	if err := c.do(ctx, req, &message); err != nil {
		return nil, err
	}
	if message.ID == "" {
		return nil, errors.MalformedResponse(fmt.Errorf("updated message has no id"))
	}
	return &message, nil
}

// Delete trusts any 2xx status; the confirmation body is not inspected.
func (c *MessageClient) Delete(ctx context.Context, messageID string, forEveryone bool) error {
	req := request{
		endpoint: "messages.delete",
		method:   http.MethodDelete,
		path:     "/messages/" + url.PathEscape(messageID) + "?forEveryone=" + strconv.FormatBool(forEveryone),
	}
	err := c.do(ctx, req, nil)
	if forEveryone && errors.Is(err, errors.CodeForbidden) {
		return errors.Forbidden(MsgDeleteForEveryoneForbidden, err)
	}
	return err
}

func (c *MessageClient) UnreadCount(ctx context.Context) (int, error) {
	var resp countResponse
	req := request{endpoint: "messages.unread_count", method: http.MethodGet, path: "/messages/unread/count"}
	if err := c.do(ctx, req, &resp); err != nil {
		return 0, err
	}
	return resp.value(), nil
}

func (c *MessageClient) Search(ctx context.Context, query string) ([]*entity.Message, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.Validation("Enter something to search for")
	}

	var raw json.RawMessage
	req := request{
		endpoint: "messages.search",
		method:   http.MethodGet,
		path:     "/messages/search?query=" + url.QueryEscape(query),
	}
	if err := c.do(ctx, req, &raw); err != nil {
		return nil, err
	}

	if isArray(raw) {
		var messages []*entity.Message
		if err := json.Unmarshal(raw, &messages); err != nil {
			return nil, errors.MalformedResponse(err)
		}
		return messages, nil
	}
	var resp messagesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.MalformedResponse(err)
	}
	return resp.Messages, nil
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
