package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/bissquit/linkwatch/internal/domain"
	"github.com/bissquit/linkwatch/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// RegistrationRepository covers the write paths the registration
// boundary needs. The postgres repository implements it alongside the
// pipeline's Repository interface.
type RegistrationRepository interface {
	AddLink(ctx context.Context, link *domain.Link) error
	AddChatLink(ctx context.Context, chatLink *domain.ChatLink) error
	GetLinkByURL(ctx context.Context, url string) (*domain.Link, error)
}

// RegistrationHandler handles HTTP requests for registering links and
// chat subscriptions.
type RegistrationHandler struct {
	repo      RegistrationRepository
	validator *validator.Validate
}

// NewRegistrationHandler creates a new registration handler.
func NewRegistrationHandler(repo RegistrationRepository) *RegistrationHandler {
	return &RegistrationHandler{
		repo:      repo,
		validator: validator.New(),
	}
}

// RegisterRoutes registers the registration routes.
func (h *RegistrationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/links", h.AddLink)
	r.Get("/links", h.GetLinkByURL)
	r.Post("/chats/{chatID}/links", h.AddChatLink)
}

// AddLinkRequest represents the request body for tracking a new link.
type AddLinkRequest struct {
	URL           string                       `json:"url" validate:"required,url"`
	Type          string                       `json:"type" validate:"required,oneof=github stackoverflow"`
	Github        *GithubDetailsRequest        `json:"github" validate:"required_if=Type github"`
	StackOverflow *StackOverflowDetailsRequest `json:"stackoverflow" validate:"required_if=Type stackoverflow"`
}

// GithubDetailsRequest carries GitHub-specific link attributes.
type GithubDetailsRequest struct {
	Owner      string `json:"owner" validate:"required"`
	Repo       string `json:"repo" validate:"required"`
	ItemNumber int64  `json:"item_number" validate:"min=0"`
	EventType  string `json:"event_type" validate:"required,oneof=issue pull_request repository"`
}

// StackOverflowDetailsRequest carries StackOverflow-specific link attributes.
type StackOverflowDetailsRequest struct {
	QuestionID int64 `json:"question_id" validate:"required,min=1"`
}

// ToDomain converts the request to a domain model.
func (r *AddLinkRequest) ToDomain() *domain.Link {
	link := &domain.Link{
		Type:        domain.LinkType(r.Type),
		OriginalURL: r.URL,
	}
	if r.Github != nil {
		link.Github = &domain.GithubDetails{
			Owner:      r.Github.Owner,
			Repo:       r.Github.Repo,
			ItemNumber: r.Github.ItemNumber,
			EventType:  domain.GithubEventType(r.Github.EventType),
		}
	}
	if r.StackOverflow != nil {
		link.StackOverflow = &domain.StackOverflowDetails{
			QuestionID: r.StackOverflow.QuestionID,
		}
	}
	return link
}

// LinkResponse represents a tracked link in API responses.
type LinkResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
}

func toLinkResponse(link *domain.Link) LinkResponse {
	return LinkResponse{
		ID:        link.ID,
		Type:      string(link.Type),
		URL:       link.OriginalURL,
		CreatedAt: link.CreatedAt.Format(time.RFC3339),
	}
}

// AddLink registers a new tracked link.
func (h *RegistrationHandler) AddLink(w http.ResponseWriter, r *http.Request) {
	var req AddLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	link := req.ToDomain()
	if err := h.repo.AddLink(r.Context(), link); err != nil {
		httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
			{Error: ErrLinkAlreadyTracked, Status: http.StatusConflict},
		})
		return
	}

	httputil.Success(w, http.StatusCreated, toLinkResponse(link))
}

// GetLinkByURL looks up a tracked link by its original URL.
func (h *RegistrationHandler) GetLinkByURL(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		httputil.Error(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	link, err := h.repo.GetLinkByURL(r.Context(), url)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
			{Error: ErrLinkNotFound, Status: http.StatusNotFound},
		})
		return
	}

	httputil.Success(w, http.StatusOK, toLinkResponse(link))
}

// AddChatLinkRequest represents the request body for subscribing a chat
// to a link.
type AddChatLinkRequest struct {
	LinkID  string   `json:"link_id" validate:"required,uuid"`
	Tags    []string `json:"tags"`
	Filters []string `json:"filters"`
}

// AddChatLink subscribes a chat to a link. Re-subscribing replaces the
// subscription's tags and filters.
func (h *RegistrationHandler) AddChatLink(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid chat id")
		return
	}

	var req AddChatLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	chatLink := &domain.ChatLink{
		ChatID:  chatID,
		LinkID:  req.LinkID,
		Tags:    req.Tags,
		Filters: req.Filters,
	}
	if err := h.repo.AddChatLink(r.Context(), chatLink); err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.Success(w, http.StatusCreated, map[string]any{
		"chat_id": chatLink.ChatID,
		"link_id": chatLink.LinkID,
		"tags":    chatLink.Tags,
		"filters": chatLink.Filters,
	})
}
