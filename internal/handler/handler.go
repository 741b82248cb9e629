// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/library-lending/internal/model"
	"github.com/Shivanand-hulikatti/library-lending/internal/retry"
	"github.com/Shivanand-hulikatti/library-lending/internal/service"
	"github.com/Shivanand-hulikatti/library-lending/internal/validator"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// envelope wraps every successful response body in a named key.
type envelope map[string]any

// LibraryHandler holds all HTTP handlers for the library API.
type LibraryHandler struct {
	svc       *service.Coordinator
	logger    *zap.Logger
	retryOpts []retry.Option
}

// NewLibraryHandler constructs a LibraryHandler. retryOpts tune how transient
// storage failures of mutating calls are retried.
func NewLibraryHandler(svc *service.Coordinator, logger *zap.Logger, retryOpts ...retry.Option) *LibraryHandler {
	return &LibraryHandler{svc: svc, logger: logger, retryOpts: retryOpts}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func writeValidationError(w http.ResponseWriter, v *validator.Validator) {
	writeJSON(w, http.StatusUnprocessableEntity, model.ErrorResponse{
		Error:  "validation failed",
		Fields: v.Errors,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func readPage(qs url.Values) model.Page {
	return model.Page{
		Number: readInt(qs, "page", 1),
		Size:   readInt(qs, "page_size", model.DefaultPageSize),
	}.Normalize()
}

func readInt(qs url.Values, key string, fallback int) int {
	s := qs.Get(key)
	if s == "" {
		return fallback
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return i
}

// idParam extracts the {id} path parameter, rejecting anything that is not a UUID.
func idParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !validator.IsUUID(id) {
		writeError(w, http.StatusBadRequest, "invalid id parameter")
		return "", false
	}
	return id, true
}

// mutate runs a state-changing service call, retrying transient storage failures.
func (h *LibraryHandler) mutate(r *http.Request, fn func(ctx context.Context) error) error {
	opts := append([]retry.Option{
		retry.OnRetry(func(attempt int, err error) {
			h.logger.Warn("retrying after transient failure",
				zap.String("path", r.URL.Path),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}),
	}, h.retryOpts...)
	return retry.Do(r.Context(), fn, opts...)
}

// writeServiceError maps service errors onto HTTP statuses.
func (h *LibraryHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrBookNotFound),
		errors.Is(err, service.ErrMemberNotFound),
		errors.Is(err, service.ErrNoOpenLoan):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrBookUnavailable),
		errors.Is(err, service.ErrBorrowLimitExceeded),
		errors.Is(err, service.ErrHasOpenLoans),
		errors.Is(err, service.ErrDuplicateBook),
		errors.Is(err, service.ErrLoanNotOpen):
		writeError(w, http.StatusConflict, err.Error())
	case retry.Retryable(err), errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("request failed with transient error", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, try again")
	default:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// ─── Books ────────────────────────────────────────────────────────────────────

// RegisterBook handles POST /books
// Adds a copy of the title; a known title+author only increments its amount.
func (h *LibraryHandler) RegisterBook(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	v := validator.New()
	validator.ValidateTitle(v, req.Title)
	validator.ValidateAuthor(v, req.Author)
	if !v.Valid() {
		writeValidationError(w, v)
		return
	}

	var book *model.Book
	err := h.mutate(r, func(ctx context.Context) error {
		var err error
		book, err = h.svc.RegisterBook(ctx, req)
		return err
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{"book": book})
}

// ListBooks handles GET /books
func (h *LibraryHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, meta, err := h.svc.ListBooks(r.Context(), readPage(r.URL.Query()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if books == nil {
		books = []model.Book{}
	}

	writeJSON(w, http.StatusOK, envelope{"books": books, "metadata": meta})
}

// GetBook handles GET /books/{id}
func (h *LibraryHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	book, err := h.svc.GetBook(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{"book": book})
}

// UpdateBook handles PATCH /books/{id}
func (h *LibraryHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var req model.UpdateBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	v := validator.New()
	if req.Title != nil {
		validator.ValidateTitle(v, *req.Title)
	}
	if req.Author != nil {
		validator.ValidateAuthor(v, *req.Author)
	}
	if !v.Valid() {
		writeValidationError(w, v)
		return
	}

	var book *model.Book
	err := h.mutate(r, func(ctx context.Context) error {
		var err error
		book, err = h.svc.UpdateBook(ctx, id, req)
		return err
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{"book": book})
}

// DeleteBook handles DELETE /books/{id}
// Fails with 409 while any copy of the book is out on loan.
func (h *LibraryHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	err := h.mutate(r, func(ctx context.Context) error {
		return h.svc.RemoveBook(ctx, id)
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ─── Members ──────────────────────────────────────────────────────────────────

// RegisterMember handles POST /members
func (h *LibraryHandler) RegisterMember(w http.ResponseWriter, r *http.Request) {
	var req model.CreateMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	v := validator.New()
	validator.ValidatePersonName(v, "name", req.Name)
	validator.ValidatePersonName(v, "surname", req.Surname)
	if !v.Valid() {
		writeValidationError(w, v)
		return
	}

	var member *model.Member
	err := h.mutate(r, func(ctx context.Context) error {
		var err error
		member, err = h.svc.RegisterMember(ctx, req)
		return err
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{"member": member})
}

// ListMembers handles GET /members
func (h *LibraryHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, meta, err := h.svc.ListMembers(r.Context(), readPage(r.URL.Query()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if members == nil {
		members = []model.Member{}
	}

	writeJSON(w, http.StatusOK, envelope{"members": members, "metadata": meta})
}

// GetMember handles GET /members/{id}
func (h *LibraryHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	member, err := h.svc.GetMember(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{"member": member})
}

// UpdateMember handles PATCH /members/{id}
func (h *LibraryHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var req model.UpdateMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	v := validator.New()
	if req.Name != nil {
		validator.ValidatePersonName(v, "name", *req.Name)
	}
	if req.Surname != nil {
		validator.ValidatePersonName(v, "surname", *req.Surname)
	}
	if !v.Valid() {
		writeValidationError(w, v)
		return
	}

	var member *model.Member
	err := h.mutate(r, func(ctx context.Context) error {
		var err error
		member, err = h.svc.UpdateMember(ctx, id, req)
		return err
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{"member": member})
}

// DeleteMember handles DELETE /members/{id}
func (h *LibraryHandler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	err := h.mutate(r, func(ctx context.Context) error {
		return h.svc.RemoveMember(ctx, id)
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMemberLoans handles GET /members/{id}/loans?open=true
func (h *LibraryHandler) ListMemberLoans(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	qs := r.URL.Query()
	openOnly, _ := strconv.ParseBool(qs.Get("open"))

	loans, meta, err := h.svc.ListMemberLoans(r.Context(), id, openOnly, readPage(qs))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if loans == nil {
		loans = []model.Loan{}
	}

	writeJSON(w, http.StatusOK, envelope{"loans": loans, "metadata": meta})
}

// ─── Lending ──────────────────────────────────────────────────────────────────

// readLendingParams reads bookId and memberId from the query string.
func readLendingParams(w http.ResponseWriter, r *http.Request) (bookID, memberID string, ok bool) {
	qs := r.URL.Query()
	bookID, memberID = qs.Get("bookId"), qs.Get("memberId")

	v := validator.New()
	v.Check(validator.IsUUID(bookID), "bookId", "must be a valid id")
	v.Check(validator.IsUUID(memberID), "memberId", "must be a valid id")
	if !v.Valid() {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "invalid parameters", Fields: v.Errors})
		return "", "", false
	}
	return bookID, memberID, true
}

// Borrow handles POST /library/borrow?bookId=&memberId=
func (h *LibraryHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	bookID, memberID, ok := readLendingParams(w, r)
	if !ok {
		return
	}

	var loan *model.Loan
	err := h.mutate(r, func(ctx context.Context) error {
		var err error
		loan, err = h.svc.Borrow(ctx, bookID, memberID)
		return err
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{"loan": loan})
}

// Return handles POST /library/return?bookId=&memberId=
func (h *LibraryHandler) Return(w http.ResponseWriter, r *http.Request) {
	bookID, memberID, ok := readLendingParams(w, r)
	if !ok {
		return
	}

	var loan *model.Loan
	err := h.mutate(r, func(ctx context.Context) error {
		var err error
		loan, err = h.svc.Return(ctx, bookID, memberID)
		return err
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{"loan": loan})
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
