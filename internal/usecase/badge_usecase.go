package usecase

import (
	"context"
	"sync"

	"bibomarket/internal/domain/service"
	"bibomarket/internal/infrastructure/events"
	"bibomarket/pkg/logger"
)

type Badges struct {
	CartItems      int `json:"cartItems"`
	UnreadMessages int `json:"unreadMessages"`
}

// BadgeUseCase keeps the header counters: items in the cart and unread
// messages. The poller refreshes each counter as its own job.
type BadgeUseCase struct {
	cartService    service.CartService
	messageService service.MessageService
	events         EventPublisher

	mutex  sync.RWMutex
	badges Badges
}

func NewBadgeUseCase(cartService service.CartService, messageService service.MessageService, publisher EventPublisher) *BadgeUseCase {
	return &BadgeUseCase{
		cartService:    cartService,
		messageService: messageService,
		events:         publisherOrNop(publisher),
	}
}

func (uc *BadgeUseCase) Get() Badges {
	uc.mutex.RLock()
	defer uc.mutex.RUnlock()
	return uc.badges
}

func (uc *BadgeUseCase) RefreshCart(ctx context.Context) error {
	cart, err := uc.cartService.GetCart(ctx)
	if err != nil {
		logger.Warn("RefreshCart Error: %v", err)
		return err
	}
	uc.update(func(b *Badges) { b.CartItems = cart.ItemCount() })
	return nil
}

func (uc *BadgeUseCase) RefreshMessages(ctx context.Context) error {
	count, err := uc.messageService.UnreadCount(ctx)
	if err != nil {
		logger.Warn("RefreshMessages Error: %v", err)
		return err
	}
	uc.update(func(b *Badges) { b.UnreadMessages = count })
	return nil
}

func (uc *BadgeUseCase) Reset() {
	uc.update(func(b *Badges) { *b = Badges{} })
}

func (uc *BadgeUseCase) update(fn func(*Badges)) {
	uc.mutex.Lock()
	before := uc.badges
	fn(&uc.badges)
	after := uc.badges
	uc.mutex.Unlock()

	if before != after {
		uc.events.Publish(events.TopicBadgesUpdated, after)
	}
}
