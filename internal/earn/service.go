// Package earn decides whether a chat message earns currency. The command
// collaborator feeds it resolved message metadata (guild, author, channel,
// roles); it applies each currency's earn settings and credits eligible
// amounts through the engine. It never sees message text.
package earn

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/conebot/conebot-go/internal/domain"
	"github.com/conebot/conebot-go/internal/engine"
	"github.com/conebot/conebot-go/internal/logger"
)

// Message is the metadata of one chat message, already resolved by the
// collaborator.
type Message struct {
	GuildID   string
	UserID    string
	ChannelID string
	Roles     []string
}

// Credit is one currency amount earned from a message.
type Credit struct {
	CurrName   string
	Amount     float64
	NewBalance float64
}

// Service evaluates earn settings for chat messages.
type Service interface {
	HandleMessage(ctx context.Context, msg Message) ([]Credit, error)
}

type service struct {
	engine engine.Service

	mu       sync.Mutex
	lastEarn map[string]time.Time // guild/user/currency -> last credit
	rnd      *rand.Rand
	now      func() time.Time
}

// NewService creates the earn evaluator.
func NewService(eng engine.Service) Service {
	return &service{
		engine:   eng,
		lastEarn: make(map[string]time.Time),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// HandleMessage checks every earn-enabled currency of the guild against the
// message and deposits a rolled amount for each one the author qualifies
// for. A currency that fails its channel list, role list or timeout is
// skipped silently; messages are frequent and this path must stay quiet.
func (s *service) HandleMessage(ctx context.Context, msg Message) ([]Credit, error) {
	log := logger.FromContext(ctx)

	currencies, err := s.engine.ListCurrencies(ctx, msg.GuildID)
	if err != nil {
		return nil, err
	}

	var credits []Credit
	for i := range currencies {
		c := &currencies[i]
		if !c.EarnByChat || c.EarnMax <= 0 {
			continue
		}
		if !channelAllowed(c, msg.ChannelID) || !rolesAllowed(c, msg.Roles) {
			continue
		}
		if !s.timeoutElapsed(c, msg) {
			continue
		}

		amount := c.EarnMin
		if c.EarnMax > c.EarnMin {
			amount += s.float64() * (c.EarnMax - c.EarnMin)
		}
		if amount <= 0 {
			continue
		}

		newBalance, err := s.engine.Deposit(ctx, msg.GuildID, msg.UserID, c.CurrName, amount)
		if err != nil {
			log.Error("Failed to credit chat earn", "currency", c.CurrName, "error", err)
			continue
		}
		s.markEarned(c, msg)
		credits = append(credits, Credit{CurrName: c.CurrName, Amount: amount, NewBalance: newBalance})
	}
	return credits, nil
}

// channelAllowed applies the whitelist or blacklist, whichever mode the
// currency is in. An empty whitelist admits nowhere; an empty blacklist
// denies nowhere.
func channelAllowed(c *domain.Currency, channelID string) bool {
	if c.ChannelsIsWhitelist {
		return contains(c.ChannelsWhitelist, channelID)
	}
	return !contains(c.ChannelsBlacklist, channelID)
}

func rolesAllowed(c *domain.Currency, roles []string) bool {
	if c.RolesIsWhitelist {
		for _, r := range roles {
			if contains(c.RolesWhitelist, r) {
				return true
			}
		}
		return false
	}
	for _, r := range roles {
		if contains(c.RolesBlacklist, r) {
			return false
		}
	}
	return true
}

func (s *service) timeoutElapsed(c *domain.Currency, msg Message) bool {
	if c.EarnTimeoutSeconds <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastEarn[earnKey(c, msg)]
	if !ok {
		return true
	}
	return s.now().Sub(last) >= time.Duration(c.EarnTimeoutSeconds)*time.Second
}

func (s *service) markEarned(c *domain.Currency, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEarn[earnKey(c, msg)] = s.now()
}

func (s *service) float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

func earnKey(c *domain.Currency, msg Message) string {
	return msg.GuildID + "/" + msg.UserID + "/" + c.CurrName
}

func contains(list []string, v string) bool {
	for _, have := range list {
		if have == v {
			return true
		}
	}
	return false
}
