package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/service"
)

// Services groups what the circulation handlers call into.
type Services struct {
	Requests      service.BorrowRequestService
	Records       service.BorrowRecordService
	Ebooks        service.EbookService
	Returns       service.ReturnService
	Notifications service.NotificationService
}

type CirculationHandler struct {
	svc Services
}

func NewCirculationHandler(svc Services) *CirculationHandler {
	return &CirculationHandler{svc: svc}
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("invalid "+name, raw)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError("invalid "+name, raw)
	}
	return n, nil
}

func (h *CirculationHandler) CreateBorrowRequest(w http.ResponseWriter, r *http.Request) {
	var body createBorrowRequestDTO
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Requests.CreateBorrowRequest(r.Context(), body.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *CirculationHandler) RejectBorrowRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := h.svc.Requests.RejectBorrowRequest(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"borrowRequest": req})
}

func (h *CirculationHandler) GetBorrowRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := h.svc.Requests.GetBorrowRequest(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"borrowRequest": req})
}

func (h *CirculationHandler) GetHoldQueue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	queue, err := h.svc.Requests.GetHoldQueue(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queue)
}

func (h *CirculationHandler) CreateBorrowRecord(w http.ResponseWriter, r *http.Request) {
	var body createBorrowRecordDTO
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Records.CreateBorrowRecord(r.Context(), body.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *CirculationHandler) GetBorrowRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.svc.Records.GetBorrowRecord(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"borrowRecord": rec})
}

func (h *CirculationHandler) ReturnBorrowRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body returnDTO
	if r.ContentLength != 0 {
		if err := decode(w, r, &body); err != nil {
			writeError(w, r, err)
			return
		}
	}
	res, err := h.svc.Returns.ReturnBorrowRecord(r.Context(), id, body.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *CirculationHandler) BorrowEbook(w http.ResponseWriter, r *http.Request) {
	var body borrowEbookDTO
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Ebooks.BorrowEbook(r.Context(), body.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *CirculationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, r, err)
		return
	}
	pageSize, err := queryInt(r, "page_size")
	if err != nil {
		writeError(w, r, err)
		return
	}
	notes, total, err := h.svc.Notifications.ListNotifications(r.Context(), userID, page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if page < 1 {
		page = 1
	}
	writeJSON(w, http.StatusOK, notificationsResponse{
		Notifications: notes,
		Total:         total,
		Page:          page,
	})
}
