package collection

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/taiwoajasa245/verse-collections-api/internal/auth"
	"github.com/taiwoajasa245/verse-collections-api/pkg/response"
)

const maxBodyBytes = 1 << 20

type CreateCollectionRequest struct {
	Title       string       `json:"title" validate:"required,max=200"`
	VerseGroups []VerseGroup `json:"verse_groups" validate:"omitempty,dive"`
}

type AddVersesRequest struct {
	VerseGroups []VerseGroup `json:"verse_groups" validate:"required,min=1,dive"`
}

type AddNoteRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

type SaveOrderRequest struct {
	Items []Item `json:"items" validate:"required"`
}

type SaveOrderResponse struct {
	View
	Stale bool `json:"stale"`
}

type CollectionHandler struct {
	service  *CollectionService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewCollectionHandler(service *CollectionService, logger *zap.Logger) CollectionHandler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if logger == nil {
		logger = zap.NewNop()
	}
	return CollectionHandler{service: service, validate: v, logger: logger}
}

func (h *CollectionHandler) ListCollectionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Unauthorized", "user not logged in")
		return
	}

	collections, err := h.service.ListOwned(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "Failed to list collections")
		return
	}
	if collections == nil {
		collections = []Collection{}
	}

	response.Success(w, collections, "successfully")
}

func (h *CollectionHandler) CreateCollectionHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Unauthorized", "user not logged in")
		return
	}

	var req CreateCollectionRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.service.Create(r.Context(), claims.UserID, claims.Author(), req.Title, req.VerseGroups)
	if err != nil {
		h.writeError(w, err, "Failed to create collection")
		return
	}

	response.Created(w, NewView(*c), "collection created")
}

func (h *CollectionHandler) GetCollectionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Unauthorized", "user not logged in")
		return
	}
	id, ok := collectionID(w, r)
	if !ok {
		return
	}

	view, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		h.writeError(w, err, "Failed to get collection")
		return
	}

	response.Success(w, view, "successfully")
}

func (h *CollectionHandler) AddVersesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Unauthorized", "user not logged in")
		return
	}
	id, ok := collectionID(w, r)
	if !ok {
		return
	}

	var req AddVersesRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.service.AddVerses(r.Context(), userID, id, req.VerseGroups)
	if err != nil {
		h.writeError(w, err, "Failed to add verses")
		return
	}

	response.Success(w, view, "verses added")
}

func (h *CollectionHandler) AddNoteHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Unauthorized", "user not logged in")
		return
	}
	id, ok := collectionID(w, r)
	if !ok {
		return
	}

	var req AddNoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	note, err := h.service.AddNote(r.Context(), userID, id, req.Text)
	if err != nil {
		h.writeError(w, err, "Failed to save note")
		return
	}

	response.Created(w, note, "note saved")
}

func (h *CollectionHandler) DeleteNoteHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Unauthorized", "user not logged in")
		return
	}
	id, ok := collectionID(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveNote(r.Context(), userID, id, chi.URLParam(r, "noteID")); err != nil {
		h.writeError(w, err, "Failed to delete note")
		return
	}

	response.Success(w, "Ok", "note deleted")
}

func (h *CollectionHandler) SaveOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Unauthorized", "user not logged in")
		return
	}
	id, ok := collectionID(w, r)
	if !ok {
		return
	}

	var req SaveOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	for i, it := range req.Items {
		if (it.Group == nil) == (it.Note == nil) {
			response.Error(w, http.StatusBadRequest, "Invalid item", map[string]string{
				"items[" + strconv.Itoa(i) + "]": "exactly one of verse_group or note is required",
			})
			return
		}
	}

	res, err := h.service.SaveOrder(r.Context(), userID, id, req.Items)
	if err != nil {
		h.writeError(w, err, "Failed to save order")
		return
	}

	view := NewView(res.Collection)
	view.Items = res.Items
	if view.Items == nil {
		view.Items = []Item{}
	}

	message := "order saved"
	if res.Stale {
		message = "order saved, refresh to see the latest copy"
	}
	response.Success(w, SaveOrderResponse{View: view, Stale: res.Stale}, message)
}

func (h *CollectionHandler) PublishHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Unauthorized", "user not logged in")
		return
	}
	id, ok := collectionID(w, r)
	if !ok {
		return
	}

	view, err := h.service.Publish(r.Context(), userID, id)
	if err != nil {
		h.writeError(w, err, "Failed to publish collection")
		return
	}

	response.Success(w, view, "collection published")
}

func (h *CollectionHandler) ImportHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Unauthorized", "user not logged in")
		return
	}
	id, ok := collectionID(w, r)
	if !ok {
		return
	}

	c, err := h.service.Import(r.Context(), userID, id)
	if err != nil {
		h.writeError(w, err, "Failed to import collection")
		return
	}

	response.Created(w, NewView(*c), "collection imported")
}

func (h *CollectionHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid JSON body", err.Error())
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Namespace()] = fe.Field() + " failed " + fe.Tag()
			}
			response.Error(w, http.StatusBadRequest, "Missing required fields", fields)
			return false
		}
		response.Error(w, http.StatusBadRequest, "Invalid request", err.Error())
		return false
	}
	return true
}

func (h *CollectionHandler) writeError(w http.ResponseWriter, err error, message string) {
	var (
		rej     *RejectedError
		saveErr *SaveError
	)
	switch {
	case errors.As(err, &rej):
		status := http.StatusUnprocessableEntity
		if errors.Is(err, ErrImportDuplicate) {
			status = http.StatusConflict
		}
		response.Error(w, status, message, map[string]string{"reason": rej.Reason})
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoteNotFound):
		response.Error(w, http.StatusNotFound, message, err.Error())
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotPublished):
		response.Error(w, http.StatusForbidden, message, err.Error())
	case errors.Is(err, ErrSaveInFlight), errors.Is(err, ErrNoteExists):
		response.Error(w, http.StatusConflict, message, err.Error())
	case errors.Is(err, ErrInvalidReorder):
		response.Error(w, http.StatusBadRequest, message, err.Error())
	case errors.As(err, &saveErr):
		h.logger.Warn("save failed", zap.String("stage", string(saveErr.Stage)), zap.Error(saveErr.Err))
		response.Error(w, http.StatusServiceUnavailable, message, "changes were not saved, try again")
	default:
		h.logger.Error(message, zap.Error(err))
		response.Error(w, http.StatusInternalServerError, message, "internal error")
	}
}

func collectionID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		response.Error(w, http.StatusBadRequest, "Invalid collection id", map[string]string{
			"id": "id must be a positive integer",
		})
		return 0, false
	}
	return id, true
}
