package usecase

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bibomarket/internal/domain/entity"
	"bibomarket/internal/domain/service"
	"bibomarket/internal/infrastructure/events"
	"bibomarket/pkg/errors"
)

const me = "u-me"

func msg(id, from, to, content string) *entity.Message {
	return &entity.Message{ID: id, SenderID: from, ReceiverID: to, Content: content, CreatedAt: time.Now()}
}

func thread(partnerID string, messages ...*entity.Message) *entity.Thread {
	return &entity.Thread{
		Partner:  &entity.Partner{ID: partnerID, Name: "Partner " + partnerID, Role: entity.RoleMerchant},
		Messages: messages,
	}
}

func newConversationFixture() (*ConversationUseCase, *mockMessageService, *recordingPublisher) {
	svc := new(mockMessageService)
	pub := &recordingPublisher{}
	uc := NewConversationUseCase(svc, fixedUser(me), NewMediaStager(nil, DefaultMaxMediaSize), pub)
	return uc, svc, pub
}

// openWith opens partnerID with the given messages.
func openWith(t *testing.T, uc *ConversationUseCase, svc *mockMessageService, partnerID string, messages ...*entity.Message) {
	t.Helper()
	svc.On("ListMessages", mock.Anything, partnerID).Return(thread(partnerID, messages...), nil).Once()
	svc.On("MarkAllRead", mock.Anything, partnerID).Return(0, nil).Once()
	require.NoError(t, uc.OpenChat(context.Background(), partnerID))
}

func TestConversation_OpenChatShowsOnlyPartnerMessages(t *testing.T) {
	uc, svc, _ := newConversationFixture()

	openWith(t, uc, svc, "p1",
		msg("m1", "p1", me, "hello"),
		msg("m2", "p9", me, "wrong thread"),
		msg("m3", me, "p1", "hi back"),
	)

	view := uc.View()
	assert.Equal(t, StatusReady, view.Status)
	assert.Equal(t, "p1", view.SelectedPartnerID)
	require.Len(t, view.Messages, 2)
	for _, m := range view.Messages {
		assert.True(t, m.Involves("p1"))
	}
	assert.Equal(t, uint64(1), view.ScrollSeq)
	svc.AssertExpectations(t)
}

func TestConversation_SwitchingPartnersReplacesMessages(t *testing.T) {
	uc, svc, _ := newConversationFixture()

	openWith(t, uc, svc, "p1", msg("m1", "p1", me, "a"), msg("m2", me, "p1", "b"))
	openWith(t, uc, svc, "p2", msg("m3", "p2", me, "c"))

	view := uc.View()
	require.Len(t, view.Messages, 1)
	assert.Equal(t, "m3", view.Messages[0].ID)
	assert.Equal(t, "p2", view.Partner.ID)
}

func TestConversation_StaleThreadIsDiscarded(t *testing.T) {
	uc, svc, _ := newConversationFixture()

	started := make(chan struct{})
	release := make(chan struct{})
	svc.On("ListMessages", mock.Anything, "p1").Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(thread("p1", msg("m1", "p1", me, "late")), nil).Once()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, uc.OpenChat(context.Background(), "p1"))
	}()
	<-started

	openWith(t, uc, svc, "p2", msg("m2", "p2", me, "fresh"))
	close(release)
	wg.Wait()

	view := uc.View()
	assert.Equal(t, "p2", view.SelectedPartnerID)
	require.Len(t, view.Messages, 1)
	assert.Equal(t, "m2", view.Messages[0].ID)
	svc.AssertNotCalled(t, "MarkAllRead", mock.Anything, "p1")
}

func TestConversation_OpenChatZeroesUnreadAndToleratesMarkReadFailure(t *testing.T) {
	uc, svc, _ := newConversationFixture()

	svc.On("ListConversations", mock.Anything).Return([]*entity.Conversation{
		{PartnerID: "p1", PartnerName: "Sari", UnreadCount: 3},
		{PartnerID: "p2", PartnerName: "Budi", UnreadCount: 1},
	}, nil)
	require.NoError(t, uc.LoadConversations(context.Background()))

	svc.On("ListMessages", mock.Anything, "p1").Return(thread("p1", msg("m1", "p1", me, "hi")), nil)
	svc.On("MarkAllRead", mock.Anything, "p1").Return(0, errors.Network(io.EOF))

	require.NoError(t, uc.OpenChat(context.Background(), "p1"))

	view := uc.View()
	assert.Equal(t, 0, view.Conversations[0].UnreadCount)
	assert.Equal(t, 1, view.Conversations[1].UnreadCount)
	assert.Len(t, view.Messages, 1)
	assert.Empty(t, view.Error)

	// A reload with server lag still shows the open conversation as read.
	svc.ExpectedCalls = nil
	svc.On("ListConversations", mock.Anything).Return([]*entity.Conversation{
		{PartnerID: "p1", PartnerName: "Sari", UnreadCount: 3},
	}, nil)
	require.NoError(t, uc.LoadConversations(context.Background()))
	assert.Equal(t, 0, uc.View().Conversations[0].UnreadCount)
}

func TestConversation_PartnerFallsBackToSummary(t *testing.T) {
	uc, svc, _ := newConversationFixture()

	svc.On("ListConversations", mock.Anything).Return([]*entity.Conversation{
		{PartnerID: "p1", PartnerName: "Sari", PartnerRole: entity.RoleSupplier},
	}, nil)
	require.NoError(t, uc.LoadConversations(context.Background()))

	svc.On("ListMessages", mock.Anything, "p1").Return(&entity.Thread{
		Partner:  &entity.Partner{ID: "p1", Name: "User", Synthesized: true},
		Messages: []*entity.Message{},
	}, nil)
	svc.On("MarkAllRead", mock.Anything, "p1").Return(0, nil)

	require.NoError(t, uc.OpenChat(context.Background(), "p1"))

	partner := uc.View().Partner
	require.NotNil(t, partner)
	assert.Equal(t, "Sari", partner.Name)
	assert.Equal(t, entity.RoleSupplier, partner.Role)
}

func TestConversation_EmptySendMakesNoCall(t *testing.T) {
	uc, svc, _ := newConversationFixture()
	openWith(t, uc, svc, "p1")

	message, err := uc.Send(context.Background(), "   \n\t")

	assert.NoError(t, err)
	assert.Nil(t, message)
	svc.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestConversation_SendAppendsAndPatchesSummary(t *testing.T) {
	uc, svc, pub := newConversationFixture()

	svc.On("ListConversations", mock.Anything).Return([]*entity.Conversation{
		{PartnerID: "p2", PartnerName: "Budi", LastMessage: "old"},
	}, nil)
	require.NoError(t, uc.LoadConversations(context.Background()))
	openWith(t, uc, svc, "p2", msg("m1", "p2", me, "hi"))

	sent := msg("m2", me, "p2", "order ready?")
	svc.On("Send", mock.Anything, service.SendMessageInput{ReceiverID: "p2", Content: "order ready?"}).Return(sent, nil)

	got, err := uc.Send(context.Background(), "  order ready?  ")

	require.NoError(t, err)
	assert.Equal(t, "m2", got.ID)

	view := uc.View()
	assert.Equal(t, StatusReady, view.Status)
	require.Len(t, view.Messages, 2)
	assert.Equal(t, "m2", view.Messages[1].ID)
	assert.Equal(t, "order ready?", view.Conversations[0].LastMessage)
	assert.NotNil(t, view.Conversations[0].LastMessageTime)
	assert.Equal(t, uint64(2), view.ScrollSeq)
	assert.Contains(t, pub.topics(), events.TopicMessagesUpdated)
	assert.Contains(t, pub.topics(), events.TopicConversationsUpdated)
}

func TestConversation_SendInsertsMissingSummary(t *testing.T) {
	uc, svc, _ := newConversationFixture()
	openWith(t, uc, svc, "p3")

	svc.On("Send", mock.Anything, mock.Anything).Return(msg("m1", me, "p3", "first!"), nil)

	_, err := uc.Send(context.Background(), "first!")
	require.NoError(t, err)

	view := uc.View()
	require.Len(t, view.Conversations, 1)
	assert.Equal(t, "p3", view.Conversations[0].PartnerID)
	assert.Equal(t, "Partner p3", view.Conversations[0].PartnerName)
	assert.Equal(t, "first!", view.Conversations[0].LastMessage)
}

func TestConversation_SendFailureAppendsNothing(t *testing.T) {
	uc, svc, _ := newConversationFixture()
	openWith(t, uc, svc, "p1", msg("m1", "p1", me, "hi"))

	svc.On("Send", mock.Anything, mock.Anything).Return(nil, errors.Server(500, "Receiver not found"))

	_, err := uc.Send(context.Background(), "hello?")

	require.Error(t, err)
	view := uc.View()
	assert.Len(t, view.Messages, 1)
	assert.Equal(t, "Receiver not found", view.Error)
	assert.Equal(t, StatusReady, view.Status)
}

func TestConversation_SendMalformedUsesTemporaryMessage(t *testing.T) {
	uc, svc, _ := newConversationFixture()
	openWith(t, uc, svc, "p1")

	svc.On("Send", mock.Anything, mock.Anything).Return(nil, errors.MalformedResponse(io.ErrUnexpectedEOF))

	got, err := uc.Send(context.Background(), "hi")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got.ID, "temp-"))
	assert.True(t, got.Temporary)
	assert.Equal(t, me, got.SenderID)
	assert.Len(t, uc.View().Messages, 1)
}

func TestConversation_SendWithAttachmentClearsIt(t *testing.T) {
	uc, svc, _ := newConversationFixture()
	openWith(t, uc, svc, "p1")

	file := &entity.MediaFile{Name: "a.png", ContentType: "image/png", Size: 2 << 20}
	_, err := uc.StageMedia(file)
	require.NoError(t, err)

	svc.On("Send", mock.Anything, service.SendMessageInput{ReceiverID: "p1", Media: file}).
		Return(&entity.Message{ID: "m1", SenderID: me, ReceiverID: "p1", MediaType: "image"}, nil)

	_, err = uc.Send(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, uc.View().Attachment)
}

func TestConversation_InvalidMediaIsNotStaged(t *testing.T) {
	uc, svc, _ := newConversationFixture()
	openWith(t, uc, svc, "p1")

	_, err := uc.StageMedia(&entity.MediaFile{Name: "notes.txt", ContentType: "text/plain", Size: 10})

	require.Error(t, err)
	view := uc.View()
	assert.Nil(t, view.Attachment)
	assert.Equal(t, MsgUnsupportedMediaType, view.Error)
}

func TestConversation_MenuAndOutsideClick(t *testing.T) {
	uc, svc, _ := newConversationFixture()
	openWith(t, uc, svc, "p1", msg("m1", me, "p1", "mine"))

	require.NoError(t, uc.OpenMenu("m1", Position{X: 10, Y: 20}))
	assert.Equal(t, ModeMenuOpen, uc.View().Mode.Kind)

	assert.False(t, uc.HandleClick(ClickTarget{InMenu: true}))
	assert.False(t, uc.HandleClick(ClickTarget{OnTrigger: true}))
	assert.Equal(t, ModeMenuOpen, uc.View().Mode.Kind)

	assert.True(t, uc.HandleClick(ClickTarget{}))
	assert.Equal(t, ModeIdle, uc.View().Mode.Kind)

	assert.True(t, errors.Is(uc.OpenMenu("missing", Position{}), errors.CodeNotFound))
}

func TestConversation_EditFlow(t *testing.T) {
	uc, svc, _ := newConversationFixture()
	openWith(t, uc, svc, "p1", msg("m1", me, "p1", "helo"), msg("m2", "p1", me, "theirs"))

	require.NoError(t, uc.OpenMenu("m1", Position{}))
	require.NoError(t, uc.StartEdit("m1"))

	mode := uc.View().Mode
	assert.Equal(t, ModeEditing, mode.Kind)
	assert.Equal(t, "helo", mode.Content)

	require.NoError(t, uc.SetEditDraft("   "))
	_, err := uc.SaveEdit(context.Background())
	assert.True(t, errors.Is(err, errors.CodeValidation))
	assert.Equal(t, ModeEditing, uc.View().Mode.Kind)
	svc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, uc.SetEditDraft("hello"))
	svc.On("Update", mock.Anything, "m1", "hello").Return(msg("m1", me, "p1", "hello"), nil)

	updated, err := uc.SaveEdit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", updated.Content)

	view := uc.View()
	assert.Equal(t, ModeIdle, view.Mode.Kind)
	assert.Equal(t, "hello", view.Messages[0].Content)
	assert.Equal(t, "theirs", view.Messages[1].Content)
}

func TestConversation_CannotEditOthersMessages(t *testing.T) {
	uc, svc, _ := newConversationFixture()
	openWith(t, uc, svc, "p1", msg("m2", "p1", me, "theirs"))

	err := uc.StartEdit("m2")

	assert.True(t, errors.Is(err, errors.CodeForbidden))
	assert.Equal(t, ModeIdle, uc.View().Mode.Kind)
}

func TestConversation_DeleteForEveryoneForbiddenReverts(t *testing.T) {
	uc, svc, _ := newConversationFixture()
	openWith(t, uc, svc, "p1", msg("m1", me, "p1", "oops"))

	const denied = "You are not authorized to delete this message for everyone"
	svc.On("Delete", mock.Anything, "m1", true).Return(errors.Forbidden(denied, nil))

	err := uc.Delete(context.Background(), "m1", true)

	require.Error(t, err)
	view := uc.View()
	assert.Empty(t, view.Deleting)
	require.Len(t, view.Messages, 1)
	assert.Equal(t, "m1", view.Messages[0].ID)
	assert.Equal(t, denied, view.Error)
}

func TestConversation_DeleteKeepsLocalRemovalOnOtherErrors(t *testing.T) {
	uc, svc, _ := newConversationFixture()
	openWith(t, uc, svc, "p1", msg("m1", me, "p1", "a"), msg("m2", me, "p1", "b"))

	svc.On("Delete", mock.Anything, "m1", false).Return(errors.Server(500, ""))
	svc.On("Delete", mock.Anything, "m2", false).Return(nil)

	assert.NoError(t, uc.Delete(context.Background(), "m1", false))
	assert.NoError(t, uc.Delete(context.Background(), "m2", false))

	view := uc.View()
	assert.Empty(t, view.Messages)
	assert.Empty(t, view.Deleting)
}

func TestConversation_DeletingFlagWhileInFlight(t *testing.T) {
	uc, svc, _ := newConversationFixture()
	openWith(t, uc, svc, "p1", msg("m1", me, "p1", "a"))

	started := make(chan struct{})
	release := make(chan struct{})
	svc.On("Delete", mock.Anything, "m1", false).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(nil)

	done := make(chan error)
	go func() { done <- uc.Delete(context.Background(), "m1", false) }()
	<-started

	assert.Equal(t, []string{"m1"}, uc.View().Deleting)
	close(release)
	assert.NoError(t, <-done)
	assert.Empty(t, uc.View().Deleting)
}

func TestConversation_ResponseAfterCloseIsIgnored(t *testing.T) {
	uc, svc, pub := newConversationFixture()

	started := make(chan struct{})
	release := make(chan struct{})
	svc.On("ListMessages", mock.Anything, "p1").Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(thread("p1", msg("m1", "p1", me, "late")), nil)

	done := make(chan error)
	go func() { done <- uc.OpenChat(context.Background(), "p1") }()
	<-started

	uc.Close()
	close(release)
	assert.NoError(t, <-done)

	assert.Empty(t, uc.View().Messages)
	assert.NotContains(t, pub.topics(), events.TopicMessagesUpdated)
	svc.AssertNotCalled(t, "MarkAllRead", mock.Anything, mock.Anything)
}

func TestConversation_RefreshBumpsScrollOnlyOnChange(t *testing.T) {
	uc, svc, _ := newConversationFixture()
	read := msg("m1", "p1", me, "hi")
	read.IsRead = true
	openWith(t, uc, svc, "p1", read)
	seq := uc.View().ScrollSeq

	svc.On("ListMessages", mock.Anything, "p1").Return(thread("p1", read), nil).Once()
	require.NoError(t, uc.Refresh(context.Background()))
	assert.Equal(t, seq, uc.View().ScrollSeq)

	unread := msg("m2", "p1", me, "new")
	svc.On("ListMessages", mock.Anything, "p1").Return(thread("p1", read, unread), nil).Once()
	svc.On("MarkAllRead", mock.Anything, "p1").Return(1, nil).Once()
	require.NoError(t, uc.Refresh(context.Background()))

	view := uc.View()
	assert.Equal(t, seq+1, view.ScrollSeq)
	assert.Len(t, view.Messages, 2)
	svc.AssertExpectations(t)
}

func TestConversation_SearchRequiresQuery(t *testing.T) {
	uc, svc, _ := newConversationFixture()

	_, err := uc.Search(context.Background(), "  ")
	assert.True(t, errors.Is(err, errors.CodeValidation))
	svc.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)

	svc.On("Search", mock.Anything, "rice").Return([]*entity.Message{msg("m1", "p1", me, "rice 5kg")}, nil)
	found, err := uc.Search(context.Background(), "rice")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestConversation_ResetClearsState(t *testing.T) {
	uc, svc, _ := newConversationFixture()
	openWith(t, uc, svc, "p1", msg("m1", "p1", me, "hi"))

	uc.Reset()

	view := uc.View()
	assert.Equal(t, StatusIdle, view.Status)
	assert.Empty(t, view.SelectedPartnerID)
	assert.Empty(t, view.Messages)
}
