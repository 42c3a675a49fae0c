package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bibomarket/internal/domain/entity"
	"bibomarket/internal/domain/service"
	"bibomarket/internal/infrastructure/events"
	"bibomarket/pkg/errors"
	"bibomarket/pkg/logger"
)

const (
	StatusIdle    = "idle"
	StatusLoading = "loading"
	StatusReady   = "ready"
	StatusSending = "sending"
)

// UserProvider identifies the signed-in user.
type UserProvider interface {
	UserID() string
}

// ConversationUseCase holds the view state of the messaging screen: the
// conversation list, the open thread and the composer. Network calls are
// made without holding the lock; results that arrive for a partner that is
// no longer selected, or after Close, are dropped.
type ConversationUseCase struct {
	messageService service.MessageService
	users          UserProvider
	stager         *MediaStager
	events         EventPublisher
	now            func() time.Time

	mutex         sync.Mutex
	status        string
	conversations []*entity.Conversation
	selected      string
	partner       *entity.Partner
	messages      []*entity.Message
	mode          ViewMode
	attachment    *entity.MediaAttachment
	deleting      map[string]bool
	errMsg        string
	scrollSeq     uint64
	selectSeq     uint64
	closed        bool
}

func NewConversationUseCase(
	messageService service.MessageService,
	users UserProvider,
	stager *MediaStager,
	publisher EventPublisher,
) *ConversationUseCase {
	if stager == nil {
		stager = NewMediaStager(nil, DefaultMaxMediaSize)
	}
	return &ConversationUseCase{
		messageService: messageService,
		users:          users,
		stager:         stager,
		events:         publisherOrNop(publisher),
		now:            time.Now,
		status:         StatusIdle,
		mode:           IdleMode{},
		deleting:       make(map[string]bool),
	}
}

// ConversationView is a deep copy of the controller state.
type ConversationView struct {
	Status            string                  `json:"status"`
	Conversations     []*entity.Conversation  `json:"conversations"`
	SelectedPartnerID string                  `json:"selectedPartnerId,omitempty"`
	Partner           *entity.Partner         `json:"partner,omitempty"`
	Messages          []*entity.Message       `json:"messages"`
	Mode              ModeView                `json:"mode"`
	Attachment        *entity.MediaAttachment `json:"attachment,omitempty"`
	Deleting          []string                `json:"deleting,omitempty"`
	Error             string                  `json:"error,omitempty"`
	ScrollSeq         uint64                  `json:"scrollSeq"`
}

func (uc *ConversationUseCase) View() *ConversationView {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	return uc.viewLocked()
}

func (uc *ConversationUseCase) viewLocked() *ConversationView {
	v := &ConversationView{
		Status:            uc.status,
		Conversations:     make([]*entity.Conversation, 0, len(uc.conversations)),
		SelectedPartnerID: uc.selected,
		Messages:          make([]*entity.Message, 0, len(uc.messages)),
		Mode:              viewOfMode(uc.mode),
		Error:             uc.errMsg,
		ScrollSeq:         uc.scrollSeq,
	}
	for _, c := range uc.conversations {
		cp := *c
		v.Conversations = append(v.Conversations, &cp)
	}
	for _, m := range uc.messages {
		cp := *m
		v.Messages = append(v.Messages, &cp)
	}
	if uc.partner != nil {
		p := *uc.partner
		v.Partner = &p
	}
	if uc.attachment != nil {
		a := *uc.attachment
		v.Attachment = &a
	}
	for id := range uc.deleting {
		v.Deleting = append(v.Deleting, id)
	}
	return v
}

func (uc *ConversationUseCase) LoadConversations(ctx context.Context) error {
	conversations, err := uc.messageService.ListConversations(ctx)

	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	if uc.closed {
		return nil
	}
	if err != nil {
		logger.Error("LoadConversations Error: %v", err)
		uc.errMsg = errors.Message(err)
		return err
	}

	uc.conversations = conversations
	uc.zeroUnreadLocked(uc.selected)
	uc.events.Publish(events.TopicConversationsUpdated, nil)
	return nil
}

// OpenChat selects partnerID and loads its thread. The previous thread is
// dropped immediately so it can never be shown under the new partner.
func (uc *ConversationUseCase) OpenChat(ctx context.Context, partnerID string) error {
	partnerID = strings.TrimSpace(partnerID)
	if partnerID == "" {
		return errors.Validation("Select a conversation first")
	}

	uc.mutex.Lock()
	if uc.closed {
		uc.mutex.Unlock()
		return nil
	}
	uc.selectSeq++
	seq := uc.selectSeq
	uc.selected = partnerID
	uc.status = StatusLoading
	uc.messages = nil
	uc.partner = nil
	if summary := uc.summaryLocked(partnerID); summary != nil {
		uc.partner = summary.Partner()
	}
	uc.mode = IdleMode{}
	uc.attachment = nil
	uc.deleting = make(map[string]bool)
	uc.errMsg = ""
	uc.zeroUnreadLocked(partnerID)
	uc.mutex.Unlock()

	thread, err := uc.messageService.ListMessages(ctx, partnerID)

	uc.mutex.Lock()
	if uc.closed || seq != uc.selectSeq {
		uc.mutex.Unlock()
		logger.Debug("OpenChat: dropping stale thread for %s", partnerID)
		return nil
	}
	if err != nil {
		uc.status = StatusReady
		uc.messages = []*entity.Message{}
		uc.errMsg = errors.Message(err)
		uc.mutex.Unlock()
		logger.Error("OpenChat Error: failed to load messages with %s: %v", partnerID, err)
		return err
	}

	uc.partner = uc.resolvePartnerLocked(partnerID, thread.Partner)
	uc.messages = onlyWith(partnerID, thread.Messages)
	uc.status = StatusReady
	uc.scrollSeq++
	scroll := uc.scrollSeq
	uc.mutex.Unlock()

	uc.events.Publish(events.TopicMessagesUpdated, map[string]interface{}{
		"partnerId": partnerID,
		"scrollSeq": scroll,
	})

	uc.markAllRead(ctx, partnerID)
	return nil
}

// Refresh re-fetches the open thread. It is what the poller calls.
func (uc *ConversationUseCase) Refresh(ctx context.Context) error {
	uc.mutex.Lock()
	if uc.closed || uc.selected == "" || uc.status == StatusLoading {
		uc.mutex.Unlock()
		return nil
	}
	partnerID := uc.selected
	seq := uc.selectSeq
	uc.mutex.Unlock()

	thread, err := uc.messageService.ListMessages(ctx, partnerID)

	uc.mutex.Lock()
	if uc.closed || seq != uc.selectSeq {
		uc.mutex.Unlock()
		return nil
	}
	if err != nil {
		uc.mutex.Unlock()
		logger.Warn("Refresh Error: failed to refresh messages with %s: %v", partnerID, err)
		return err
	}

	fresh := onlyWith(partnerID, thread.Messages)
	changed := !sameMessageIDs(uc.messages, fresh)
	unread := false
	for _, m := range fresh {
		if m.SenderID == partnerID && !m.IsRead {
			unread = true
			break
		}
	}
	uc.messages = fresh
	uc.partner = uc.resolvePartnerLocked(partnerID, thread.Partner)
	if uc.mode.Kind() != ModeIdle && !uc.hasMessageLocked(modeMessageID(uc.mode)) {
		uc.mode = IdleMode{}
	}
	if changed {
		uc.scrollSeq++
	}
	scroll := uc.scrollSeq
	uc.mutex.Unlock()

	if changed {
		uc.events.Publish(events.TopicMessagesUpdated, map[string]interface{}{
			"partnerId": partnerID,
			"scrollSeq": scroll,
		})
	}
	if unread {
		uc.markAllRead(ctx, partnerID)
	}
	return nil
}

func (uc *ConversationUseCase) markAllRead(ctx context.Context, partnerID string) {
	if _, err := uc.messageService.MarkAllRead(ctx, partnerID); err != nil {
		logger.Warn("MarkAllRead Error: partner %s: %v", partnerID, err)
	}
}

// Send posts text and the staged attachment to the open conversation.
// Empty text without an attachment is ignored without a network call.
func (uc *ConversationUseCase) Send(ctx context.Context, text string) (*entity.Message, error) {
	content := strings.TrimSpace(text)

	uc.mutex.Lock()
	if uc.closed {
		uc.mutex.Unlock()
		return nil, nil
	}
	attachment := uc.attachment
	if content == "" && attachment == nil {
		uc.mutex.Unlock()
		return nil, nil
	}
	if uc.selected == "" {
		uc.mutex.Unlock()
		return nil, errors.Validation("Select a conversation first")
	}
	if uc.status == StatusSending {
		uc.mutex.Unlock()
		return nil, errors.Conflict("A message is already being sent")
	}
	partnerID := uc.selected
	seq := uc.selectSeq
	uc.status = StatusSending
	uc.errMsg = ""
	uc.mutex.Unlock()

	input := service.SendMessageInput{
		ReceiverID: partnerID,
		Content:    content,
	}
	if attachment != nil {
		input.Media = attachment.File
	}
	message, err := uc.messageService.Send(ctx, input)

	uc.mutex.Lock()
	if uc.closed {
		uc.mutex.Unlock()
		return nil, nil
	}
	current := seq == uc.selectSeq
	if current {
		uc.status = StatusReady
	}

	if err != nil {
		if !errors.Is(err, errors.CodeMalformedResponse) {
			if current {
				uc.errMsg = errors.Message(err)
			}
			uc.mutex.Unlock()
			logger.Error("Send Error: failed to send message to %s: %v", partnerID, err)
			return nil, err
		}
		// Accepted, but the response is unusable: show a placeholder
		// until the next refresh brings the real message.
		logger.Warn("Send: unexpected response for message to %s, using a temporary message", partnerID)
		message = uc.temporaryMessage(partnerID, content, attachment)
	}

	if current {
		uc.messages = append(uc.messages, message)
		uc.attachment = nil
		uc.scrollSeq++
	}
	uc.patchSummaryLocked(partnerID, message)
	scroll := uc.scrollSeq
	uc.mutex.Unlock()

	uc.events.Publish(events.TopicMessagesUpdated, map[string]interface{}{
		"partnerId": partnerID,
		"scrollSeq": scroll,
	})
	uc.events.Publish(events.TopicConversationsUpdated, nil)

	cp := *message
	return &cp, nil
}

func (uc *ConversationUseCase) temporaryMessage(partnerID, content string, attachment *entity.MediaAttachment) *entity.Message {
	message := &entity.Message{
		ID:         "temp-" + uuid.New().String(),
		SenderID:   uc.users.UserID(),
		ReceiverID: partnerID,
		Content:    content,
		CreatedAt:  uc.now().UTC(),
		Temporary:  true,
	}
	if attachment != nil {
		message.MediaType = attachment.MediaType
	}
	return message
}

// StageMedia validates file and stages it in the composer. Invalid files
// are never staged.
func (uc *ConversationUseCase) StageMedia(file *entity.MediaFile) (*entity.MediaAttachment, error) {
	attachment, err := uc.stager.Validate(file)
	if err != nil {
		uc.setError(err)
		return nil, err
	}
	return uc.stage(attachment)
}

// StageMediaRef stages a file referenced by path or gs:// URI.
func (uc *ConversationUseCase) StageMediaRef(ctx context.Context, ref string) (*entity.MediaAttachment, error) {
	attachment, err := uc.stager.Resolve(ctx, ref)
	if err != nil {
		uc.setError(err)
		return nil, err
	}
	return uc.stage(attachment)
}

func (uc *ConversationUseCase) stage(attachment *entity.MediaAttachment) (*entity.MediaAttachment, error) {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	if uc.selected == "" {
		return nil, errors.Validation("Select a conversation first")
	}
	uc.attachment = attachment
	uc.errMsg = ""
	cp := *attachment
	return &cp, nil
}

// RemoveMedia drops the staged file and hides its preview.
func (uc *ConversationUseCase) RemoveMedia() {
	uc.mutex.Lock()
	uc.attachment = nil
	uc.mutex.Unlock()
}

func (uc *ConversationUseCase) OpenMenu(messageID string, pos Position) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	if !uc.hasMessageLocked(messageID) {
		return errors.NotFound("Message", nil)
	}
	uc.mode = MenuOpenMode{MessageID: messageID, Position: pos}
	return nil
}

func (uc *ConversationUseCase) CloseMenu() {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	if _, ok := uc.mode.(MenuOpenMode); ok {
		uc.mode = IdleMode{}
	}
}

// HandleClick closes the menu when the click landed outside both the menu
// and its trigger. It reports whether the menu was closed.
func (uc *ConversationUseCase) HandleClick(target ClickTarget) bool {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	if _, ok := uc.mode.(MenuOpenMode); !ok {
		return false
	}
	if target.InMenu || target.OnTrigger {
		return false
	}
	uc.mode = IdleMode{}
	return true
}

// StartEdit enters edit mode for one of the user's own messages, closing
// any open menu.
func (uc *ConversationUseCase) StartEdit(messageID string) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	message := uc.messageLocked(messageID)
	if message == nil {
		return errors.NotFound("Message", nil)
	}
	if message.SenderID != uc.users.UserID() {
		return errors.Forbidden("You can only edit your own messages", nil)
	}
	uc.mode = EditingMode{MessageID: messageID, Content: message.Content}
	return nil
}

func (uc *ConversationUseCase) SetEditDraft(content string) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	editing, ok := uc.mode.(EditingMode)
	if !ok {
		return errors.Validation("No message is being edited")
	}
	editing.Content = content
	uc.mode = editing
	return nil
}

func (uc *ConversationUseCase) CancelEdit() {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	if _, ok := uc.mode.(EditingMode); ok {
		uc.mode = IdleMode{}
	}
}

// SaveEdit sends the edit draft. An empty draft is rejected before any
// call and edit mode stays active.
func (uc *ConversationUseCase) SaveEdit(ctx context.Context) (*entity.Message, error) {
	uc.mutex.Lock()
	editing, ok := uc.mode.(EditingMode)
	if !ok {
		uc.mutex.Unlock()
		return nil, errors.Validation("No message is being edited")
	}
	content := strings.TrimSpace(editing.Content)
	if content == "" {
		uc.errMsg = "Message cannot be empty"
		uc.mutex.Unlock()
		return nil, errors.Validation("Message cannot be empty")
	}
	uc.mutex.Unlock()

	updated, err := uc.messageService.Update(ctx, editing.MessageID, content)

	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	if uc.closed {
		return nil, nil
	}
	if err != nil {
		logger.Error("SaveEdit Error: failed to update message %s: %v", editing.MessageID, err)
		uc.errMsg = errors.Message(err)
		return nil, err
	}

	for i, m := range uc.messages {
		if m.ID == updated.ID {
			uc.messages[i] = updated
			break
		}
	}
	if current, ok := uc.mode.(EditingMode); ok && current.MessageID == editing.MessageID {
		uc.mode = IdleMode{}
	}
	uc.errMsg = ""
	cp := *updated
	return &cp, nil
}

// Delete removes a message. The message is flagged as deleting while the
// call is in flight. Any 2xx is trusted; the confirmation body is not
// validated. An authorization failure reverts the flag and keeps the
// message; other failures keep the local removal.
func (uc *ConversationUseCase) Delete(ctx context.Context, messageID string, forEveryone bool) error {
	uc.mutex.Lock()
	if !uc.hasMessageLocked(messageID) {
		uc.mutex.Unlock()
		return errors.NotFound("Message", nil)
	}
	if uc.deleting[messageID] {
		uc.mutex.Unlock()
		return nil
	}
	uc.deleting[messageID] = true
	if modeTargets(uc.mode, messageID) {
		uc.mode = IdleMode{}
	}
	uc.errMsg = ""
	uc.mutex.Unlock()

	err := uc.messageService.Delete(ctx, messageID, forEveryone)

	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	delete(uc.deleting, messageID)
	if uc.closed {
		return nil
	}

	if err != nil && errors.IsAuth(err) {
		logger.Warn("Delete Error: not authorized to delete message %s: %v", messageID, err)
		uc.errMsg = errors.Message(err)
		return err
	}
	if err != nil {
		logger.Warn("Delete: keeping local removal of message %s despite error: %v", messageID, err)
	}

	kept := uc.messages[:0]
	for _, m := range uc.messages {
		if m.ID != messageID {
			kept = append(kept, m)
		}
	}
	uc.messages = kept
	uc.events.Publish(events.TopicMessagesUpdated, map[string]interface{}{
		"partnerId": uc.selected,
		"scrollSeq": uc.scrollSeq,
	})
	return nil
}

func (uc *ConversationUseCase) Search(ctx context.Context, query string) ([]*entity.Message, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.Validation("Enter something to search for")
	}
	messages, err := uc.messageService.Search(ctx, query)
	if err != nil {
		logger.Error("Search Error: %v", err)
		return nil, err
	}
	return messages, nil
}

// Reset clears all state, e.g. after logout.
func (uc *ConversationUseCase) Reset() {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	uc.selectSeq++
	uc.status = StatusIdle
	uc.conversations = nil
	uc.selected = ""
	uc.partner = nil
	uc.messages = nil
	uc.mode = IdleMode{}
	uc.attachment = nil
	uc.deleting = make(map[string]bool)
	uc.errMsg = ""
}

// Close tears the controller down. Responses arriving afterwards are
// ignored.
func (uc *ConversationUseCase) Close() {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	uc.closed = true
	uc.attachment = nil
	uc.mode = IdleMode{}
}

func (uc *ConversationUseCase) ClearError() {
	uc.setError(nil)
}

func (uc *ConversationUseCase) setError(err error) {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	if err == nil {
		uc.errMsg = ""
		return
	}
	uc.errMsg = errors.Message(err)
}

func (uc *ConversationUseCase) summaryLocked(partnerID string) *entity.Conversation {
	for _, c := range uc.conversations {
		if c.PartnerID == partnerID {
			return c
		}
	}
	return nil
}

func (uc *ConversationUseCase) zeroUnreadLocked(partnerID string) {
	if partnerID == "" {
		return
	}
	if c := uc.summaryLocked(partnerID); c != nil {
		c.UnreadCount = 0
	}
}

// resolvePartnerLocked prefers the backend profile, then the conversation
// summary, then the locally built record.
func (uc *ConversationUseCase) resolvePartnerLocked(partnerID string, partner *entity.Partner) *entity.Partner {
	if partner != nil && !partner.Synthesized {
		return partner
	}
	if summary := uc.summaryLocked(partnerID); summary != nil {
		return summary.Partner()
	}
	if partner != nil {
		return partner
	}
	return &entity.Partner{ID: partnerID, Name: "User", Synthesized: true}
}

func (uc *ConversationUseCase) patchSummaryLocked(partnerID string, message *entity.Message) {
	at := message.CreatedAt
	summary := uc.summaryLocked(partnerID)
	if summary == nil {
		summary = &entity.Conversation{PartnerID: partnerID}
		if uc.partner != nil && uc.partner.ID == partnerID {
			summary.PartnerName = uc.partner.Name
			summary.PartnerPhoto = uc.partner.PhotoURL
			summary.PartnerRole = uc.partner.Role
		}
		uc.conversations = append([]*entity.Conversation{summary}, uc.conversations...)
	}
	summary.LastMessage = message.Content
	summary.LastMediaURL = message.MediaURL
	summary.LastMediaType = message.MediaType
	summary.LastMessageTime = &at
}

func (uc *ConversationUseCase) messageLocked(messageID string) *entity.Message {
	for _, m := range uc.messages {
		if m.ID == messageID {
			return m
		}
	}
	return nil
}

func (uc *ConversationUseCase) hasMessageLocked(messageID string) bool {
	return uc.messageLocked(messageID) != nil
}

func modeMessageID(mode ViewMode) string {
	switch m := mode.(type) {
	case EditingMode:
		return m.MessageID
	case MenuOpenMode:
		return m.MessageID
	}
	return ""
}

// onlyWith keeps the messages exchanged with partnerID, in fetch order.
func onlyWith(partnerID string, messages []*entity.Message) []*entity.Message {
	kept := make([]*entity.Message, 0, len(messages))
	for _, m := range messages {
		if m == nil {
			continue
		}
		if !m.Involves(partnerID) {
			logger.Warn("onlyWith: dropping message %s not exchanged with %s", m.ID, partnerID)
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

func sameMessageIDs(a, b []*entity.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
