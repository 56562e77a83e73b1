package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/shipfast-storefront/internal/service"
)

// Overview возвращает сводку личного кабинета.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	email, ok := h.email(w, r)
	if !ok {
		return
	}

	o, err := h.service.Overview(r.Context(), email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// Licenses возвращает лицензии покупателя.
func (h *Handler) Licenses(w http.ResponseWriter, r *http.Request) {
	email, ok := h.email(w, r)
	if !ok {
		return
	}

	list, err := h.service.Licenses(r.Context(), email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"licenses": list})
}

// License возвращает лицензию с историей скачиваний.
func (h *Handler) License(w http.ResponseWriter, r *http.Request) {
	email, ok := h.email(w, r)
	if !ok {
		return
	}

	l, err := h.service.License(r.Context(), email, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// Downloads возвращает данные страницы загрузок.
func (h *Handler) Downloads(w http.ResponseWriter, r *http.Request) {
	email, ok := h.email(w, r)
	if !ok {
		return
	}

	page, err := h.service.Downloads(r.Context(), email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Notifications возвращает уведомления покупателя.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	email, ok := h.email(w, r)
	if !ok {
		return
	}

	list, err := h.service.Notifications(r.Context(), email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list, "unread": unread})
}

// MarkNotificationRead отмечает уведомление прочитанным.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	email, ok := h.email(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkNotificationRead(r.Context(), email, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsRead отмечает прочитанными все уведомления.
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	email, ok := h.email(w, r)
	if !ok {
		return
	}

	n, err := h.service.MarkAllNotificationsRead(r.Context(), email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

// DeleteNotification удаляет уведомление.
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	email, ok := h.email(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteNotification(r.Context(), email, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Tickets возвращает обращения покупателя.
func (h *Handler) Tickets(w http.ResponseWriter, r *http.Request) {
	email, ok := h.email(w, r)
	if !ok {
		return
	}

	list, err := h.service.Tickets(r.Context(), email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": list})
}

// Ticket возвращает обращение с перепиской.
func (h *Handler) Ticket(w http.ResponseWriter, r *http.Request) {
	email, ok := h.email(w, r)
	if !ok {
		return
	}

	t, err := h.service.Ticket(r.Context(), email, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// CreateTicket открывает обращение в поддержку.
func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	email, ok := h.email(w, r)
	if !ok {
		return
	}

	var req service.TicketRequest
	if !h.decode(w, r, &req) {
		return
	}

	t, err := h.service.CreateTicket(r.Context(), email, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// AddTicketMessage добавляет сообщение в обращение.
func (h *Handler) AddTicketMessage(w http.ResponseWriter, r *http.Request) {
	email, ok := h.email(w, r)
	if !ok {
		return
	}

	var req service.TicketMessageRequest
	if !h.decode(w, r, &req) {
		return
	}

	t, err := h.service.AddTicketMessage(r.Context(), email, chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
