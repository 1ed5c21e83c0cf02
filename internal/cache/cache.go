package cache

import (
	"context"
	"sync"
	"time"

	"retailpos/backend/internal/domain"
)

// SessionCache keeps in-progress register carts between requests. A
// finalized or cleared cart is deleted; an absent key means an empty
// cart, never an error.
type SessionCache interface {
	GetCart(ctx context.Context, sessionID string) (*domain.Cart, bool, error)
	SetCart(ctx context.Context, cart *domain.Cart, ttl time.Duration) error
	DeleteCart(ctx context.Context, sessionID string) error
}

// MemorySessionCache is the single-process fallback used when Redis is
// not configured. TTLs are honored lazily on read.
type MemorySessionCache struct {
	mu    sync.RWMutex
	carts map[string]memoryEntry
}

type memoryEntry struct {
	cart      domain.Cart
	expiresAt time.Time
}

func NewMemorySessionCache() *MemorySessionCache {
	return &MemorySessionCache{carts: make(map[string]memoryEntry)}
}

func (c *MemorySessionCache) GetCart(_ context.Context, sessionID string) (*domain.Cart, bool, error) {
	c.mu.RLock()
	entry, ok := c.carts[sessionID]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.carts, sessionID)
		c.mu.Unlock()
		return nil, false, nil
	}
	cart := cloneCart(entry.cart)
	return &cart, true, nil
}

func (c *MemorySessionCache) SetCart(_ context.Context, cart *domain.Cart, ttl time.Duration) error {
	if cart == nil {
		return nil
	}
	entry := memoryEntry{cart: cloneCart(*cart)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.carts[cart.SessionID] = entry
	c.mu.Unlock()
	return nil
}

func (c *MemorySessionCache) DeleteCart(_ context.Context, sessionID string) error {
	c.mu.Lock()
	delete(c.carts, sessionID)
	c.mu.Unlock()
	return nil
}

func cloneCart(cart domain.Cart) domain.Cart {
	out := cart
	out.Lines = append([]domain.CartLine(nil), cart.Lines...)
	return out
}
