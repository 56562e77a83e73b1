package middleware

import (
	"encoding/json"
	"net"
	"net/http"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError пишет ошибку в том же формате, что и обработчики API.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: kind, Message: message})
}

// ClientIP возвращает адрес клиента из RemoteAddr. Заголовки прокси учитываются только
// через chi middleware.RealIP, который подключается при TRUST_PROXY.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
