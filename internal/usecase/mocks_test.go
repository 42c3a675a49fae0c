package usecase

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"bibomarket/internal/domain/entity"
	"bibomarket/internal/domain/service"
)

type mockMessageService struct {
	mock.Mock
}

func (m *mockMessageService) ListConversations(ctx context.Context) ([]*entity.Conversation, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]*entity.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMessageService) ListMessages(ctx context.Context, partnerID string) (*entity.Thread, error) {
	args := m.Called(ctx, partnerID)
	if v := args.Get(0); v != nil {
		return v.(*entity.Thread), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMessageService) Send(ctx context.Context, input service.SendMessageInput) (*entity.Message, error) {
	args := m.Called(ctx, input)
	if v := args.Get(0); v != nil {
		return v.(*entity.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMessageService) MarkAllRead(ctx context.Context, partnerID string) (int, error) {
	args := m.Called(ctx, partnerID)
	return args.Int(0), args.Error(1)
}

func (m *mockMessageService) MarkRead(ctx context.Context, messageID string) error {
	return m.Called(ctx, messageID).Error(0)
}

func (m *mockMessageService) Update(ctx context.Context, messageID, content string) (*entity.Message, error) {
	args := m.Called(ctx, messageID, content)
	if v := args.Get(0); v != nil {
		return v.(*entity.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMessageService) Delete(ctx context.Context, messageID string, forEveryone bool) error {
	return m.Called(ctx, messageID, forEveryone).Error(0)
}

func (m *mockMessageService) UnreadCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockMessageService) Search(ctx context.Context, query string) ([]*entity.Message, error) {
	args := m.Called(ctx, query)
	if v := args.Get(0); v != nil {
		return v.([]*entity.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCartService struct {
	mock.Mock
}

func (m *mockCartService) GetCart(ctx context.Context) (*entity.Cart, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(*entity.Cart), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCartService) AddItem(ctx context.Context, productID string, quantity int) error {
	return m.Called(ctx, productID, quantity).Error(0)
}

func (m *mockCartService) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	return m.Called(ctx, itemID, quantity).Error(0)
}

func (m *mockCartService) RemoveItem(ctx context.Context, itemID string) error {
	return m.Called(ctx, itemID).Error(0)
}

func (m *mockCartService) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockCartService) ShareViaWhatsApp(ctx context.Context) ([]*entity.WhatsAppLink, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]*entity.WhatsAppLink), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCartService) PlaceOrder(ctx context.Context) (*entity.Order, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(*entity.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

type recordedEvent struct {
	topic string
	data  interface{}
}

type recordingPublisher struct {
	mutex  sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(topic string, data interface{}) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.events = append(p.events, recordedEvent{topic: topic, data: data})
}

func (p *recordingPublisher) topics() []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.topic)
	}
	return out
}

func (p *recordingPublisher) last(topic string) (interface{}, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].topic == topic {
			return p.events[i].data, true
		}
	}
	return nil, false
}

type fixedUser string

func (u fixedUser) UserID() string { return string(u) }
