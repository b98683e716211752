// Package tiles generates and converses about AI tiles, enforcing the
// usage quotas around every model call.
package tiles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tileboardhq/tileboard/pkg/ai/llm"
	"github.com/tileboardhq/tileboard/pkg/gueststore"
	"github.com/tileboardhq/tileboard/pkg/identity"
	"github.com/tileboardhq/tileboard/pkg/logger"
	"github.com/tileboardhq/tileboard/pkg/models"
	"github.com/tileboardhq/tileboard/pkg/plans"
	"github.com/tileboardhq/tileboard/pkg/quota"
	"github.com/tileboardhq/tileboard/pkg/workspace"
)

const (
	generateSystemPrompt = "You are a workspace assistant. Produce a concise, well-structured insight tile for the user's request. Answer with the tile body only."
	chatSystemPrompt     = "You are a workspace assistant answering questions about a dashboard tile. Be concise and specific."
	contactSystemPrompt  = "You are a workspace assistant answering questions about a saved contact. Be concise and specific."
)

// ErrTileNotFound reports a missing tile for the calling subject
var ErrTileNotFound = errors.New("tile not found")

// ErrContactNotFound reports a missing contact for the calling subject
var ErrContactNotFound = errors.New("contact not found")

// LimitError reports a quota denial; the HTTP layer maps it to 429
type LimitError struct {
	Decision quota.Decision
}

func (e *LimitError) Error() string { return e.Decision.Reason }

// LLM is the model surface the service needs
type LLM interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
	CountTokens(text string) int
}

// TileResult carries a generated tile; exactly one of Tile and
// GuestTile is set, depending on the calling subject
type TileResult struct {
	Tile       *models.Tile      `json:"tile,omitempty"`
	GuestTile  *models.GuestTile `json:"guestTile,omitempty"`
	TokensUsed int               `json:"tokensUsed"`
}

// Service generates tiles and tile conversations.
//
// Generation uses the check-then-act-then-increment sequence: the quota
// check runs before the model call, the increment after it succeeds, so
// a failed generation costs nothing. Chats consume their quota
// atomically up front; a chat that reaches the model is spent even if
// the model then fails.
type Service struct {
	content *workspace.Service
	guests  *gueststore.Store
	gate    *quota.Gate
	llm     LLM
	logger  logger.Logger
}

// NewService creates a tile service
func NewService(content *workspace.Service, guests *gueststore.Store, gate *quota.Gate, model LLM, log logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		content: content,
		guests:  guests,
		gate:    gate,
		llm:     model,
		logger:  log,
	}
}

// GenerateTile creates a new AI tile on the subject's dashboard
func (s *Service) GenerateTile(ctx context.Context, id identity.Identity, req models.GenerateTileRequest) (*TileResult, error) {
	if err := s.checkLimit(ctx, id, plans.KindTiles, 1); err != nil {
		return nil, err
	}
	if err := s.checkLimit(ctx, id, plans.KindTokens, int64(s.llm.CountTokens(req.Prompt))); err != nil {
		return nil, err
	}

	resp, err := s.llm.Chat(ctx, llm.ChatRequest{
		Messages: []llm.ChatMessage{
			{Role: "system", Content: generateSystemPrompt},
			{Role: "user", Content: req.Prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tile generation failed: %w", err)
	}

	result := &TileResult{TokensUsed: resp.TokensUsed}
	title := titleFromPrompt(req.Prompt)

	if id.IsMember() {
		tile, err := s.content.CreateTile(ctx, id.MemberID, req.DashboardID, title, resp.Message, req.Prompt)
		if err != nil {
			return nil, err
		}
		result.Tile = tile
	} else {
		tile := models.GuestTile{
			ID:      uuid.NewString(),
			Title:   title,
			Content: resp.Message,
			Prompt:  req.Prompt,
		}
		if err := s.guests.AddTile(id.GuestID, req.DashboardID, tile); err != nil {
			return nil, err
		}
		result.GuestTile = &tile
	}

	s.recordUsage(ctx, id, plans.KindTiles, 1)
	s.recordUsage(ctx, id, plans.KindTokens, int64(resp.TokensUsed))

	return result, nil
}

// RegenerateTile re-runs a tile's original prompt and replaces its content
func (s *Service) RegenerateTile(ctx context.Context, id identity.Identity, tileID string) (*TileResult, error) {
	if err := s.checkLimit(ctx, id, plans.KindRegenerations, 1); err != nil {
		return nil, err
	}

	prompt, err := s.tilePrompt(ctx, id, tileID)
	if err != nil {
		return nil, err
	}

	resp, err := s.llm.Chat(ctx, llm.ChatRequest{
		Messages: []llm.ChatMessage{
			{Role: "system", Content: generateSystemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tile regeneration failed: %w", err)
	}

	result := &TileResult{TokensUsed: resp.TokensUsed}
	if id.IsMember() {
		if err := s.content.UpdateTileContent(ctx, id.MemberID, tileID, resp.Message); err != nil {
			if errors.Is(err, workspace.ErrNotFound) {
				return nil, ErrTileNotFound
			}
			return nil, err
		}
		tile, err := s.content.GetTile(ctx, id.MemberID, tileID)
		if err != nil {
			return nil, err
		}
		result.Tile = tile
	} else {
		tile, err := s.guests.UpdateTileContent(id.GuestID, tileID, resp.Message)
		if err != nil {
			return nil, ErrTileNotFound
		}
		result.GuestTile = &tile
	}

	s.recordUsage(ctx, id, plans.KindRegenerations, 1)
	s.recordUsage(ctx, id, plans.KindTokens, int64(resp.TokensUsed))

	return result, nil
}

// TileChat answers a question about an existing tile. The chat quota is
// consumed atomically before the model call.
func (s *Service) TileChat(ctx context.Context, id identity.Identity, req models.TileChatRequest) (*models.TileChatResponse, error) {
	tile, err := s.tileContext(ctx, id, req.TileID)
	if err != nil {
		return nil, err
	}

	decision, err := s.gate.ConsumeWithCeiling(ctx, id, plans.KindTileChats, 1)
	if err != nil && !decision.Allowed {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &LimitError{Decision: decision}
	}

	resp, err := s.llm.Chat(ctx, llm.ChatRequest{
		Messages: []llm.ChatMessage{
			{Role: "system", Content: chatSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Tile %q:\n%s\n\nQuestion: %s", tile.Title, tile.Content, req.Message)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tile chat failed: %w", err)
	}

	s.recordUsage(ctx, id, plans.KindTokens, int64(resp.TokensUsed))

	return &models.TileChatResponse{
		Reply:      resp.Message,
		TokensUsed: resp.TokensUsed,
	}, nil
}

// ContactChat answers a question about a saved contact
func (s *Service) ContactChat(ctx context.Context, id identity.Identity, contactID, message string) (*models.TileChatResponse, error) {
	contactContext, err := s.contactContext(ctx, id, contactID)
	if err != nil {
		return nil, err
	}

	decision, err := s.gate.ConsumeWithCeiling(ctx, id, plans.KindContactChats, 1)
	if err != nil && !decision.Allowed {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &LimitError{Decision: decision}
	}

	resp, err := s.llm.Chat(ctx, llm.ChatRequest{
		Messages: []llm.ChatMessage{
			{Role: "system", Content: contactSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Contact:\n%s\n\nQuestion: %s", contactContext, message)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("contact chat failed: %w", err)
	}

	s.recordUsage(ctx, id, plans.KindTokens, int64(resp.TokensUsed))

	return &models.TileChatResponse{
		Reply:      resp.Message,
		TokensUsed: resp.TokensUsed,
	}, nil
}

func (s *Service) checkLimit(ctx context.Context, id identity.Identity, kind plans.QuotaKind, amount int64) error {
	decision, err := s.gate.CheckLimitN(ctx, id, kind, amount)
	if err != nil && !decision.Allowed {
		return err
	}
	if !decision.Allowed {
		return &LimitError{Decision: decision}
	}
	return nil
}

// recordUsage bumps a counter after the action already succeeded; a
// failed bump is logged, not surfaced
func (s *Service) recordUsage(ctx context.Context, id identity.Identity, kind plans.QuotaKind, amount int64) {
	if amount <= 0 {
		return
	}
	if err := s.gate.IncrementUsage(ctx, id, kind, amount); err != nil {
		s.logger.Error("failed to record usage",
			"subject", id.SubjectID(), "kind", string(kind), "error", err)
	}
}

type tileContext struct {
	Title   string
	Content string
}

func (s *Service) tileContext(ctx context.Context, id identity.Identity, tileID string) (*tileContext, error) {
	if id.IsMember() {
		tile, err := s.content.GetTile(ctx, id.MemberID, tileID)
		if err != nil {
			if errors.Is(err, workspace.ErrNotFound) {
				return nil, ErrTileNotFound
			}
			return nil, err
		}
		return &tileContext{Title: tile.Title, Content: tile.Content}, nil
	}

	tile, ok := s.guests.FindTile(id.GuestID, tileID)
	if !ok {
		return nil, ErrTileNotFound
	}
	return &tileContext{Title: tile.Title, Content: tile.Content}, nil
}

func (s *Service) tilePrompt(ctx context.Context, id identity.Identity, tileID string) (string, error) {
	if id.IsMember() {
		tile, err := s.content.GetTile(ctx, id.MemberID, tileID)
		if err != nil {
			if errors.Is(err, workspace.ErrNotFound) {
				return "", ErrTileNotFound
			}
			return "", err
		}
		return tile.Prompt, nil
	}

	tile, ok := s.guests.FindTile(id.GuestID, tileID)
	if !ok {
		return "", ErrTileNotFound
	}
	return tile.Prompt, nil
}

func (s *Service) contactContext(ctx context.Context, id identity.Identity, contactID string) (string, error) {
	if id.IsMember() {
		contact, err := s.content.GetContact(ctx, id.MemberID, contactID)
		if err != nil {
			if errors.Is(err, workspace.ErrNotFound) {
				return "", ErrContactNotFound
			}
			return "", err
		}
		return formatContact(contact.Name, contact.Email, contact.Company, contact.Role), nil
	}

	contact, ok := s.guests.FindContact(id.GuestID, contactID)
	if !ok {
		return "", ErrContactNotFound
	}
	return formatContact(contact.Name, contact.Email, contact.Company, contact.Role), nil
}

func formatContact(name, email, company, role string) string {
	parts := []string{"Name: " + name}
	if email != "" {
		parts = append(parts, "Email: "+email)
	}
	if company != "" {
		parts = append(parts, "Company: "+company)
	}
	if role != "" {
		parts = append(parts, "Role: "+role)
	}
	return strings.Join(parts, "\n")
}

func titleFromPrompt(prompt string) string {
	title := strings.TrimSpace(prompt)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	if len(title) > 80 {
		title = strings.TrimSpace(title[:77]) + "..."
	}
	return title
}
