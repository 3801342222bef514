package tracking

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/campaign-engine/internal/pkg/logger"
)

// pixelGIF is a transparent 1x1 GIF served on open tracking hits.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Handler serves the public tracking routes. Every route answers the client
// first and foremost; recording is queued and failures never change the
// response a mail client sees.
type Handler struct {
	pub *Publisher
}

// NewHandler creates the tracking HTTP handler.
func NewHandler(pub *Publisher) *Handler {
	return &Handler{pub: pub}
}

// Routes mounts the tracking endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/track/open", h.open)
	r.Get("/track/click", h.click)
	r.Get("/track/unsubscribe", h.unsubscribe)
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	if id, ok := parseEID(r); ok {
		h.publish(r, Event{Kind: KindOpen, EmailSendID: id})
	}
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.WriteHeader(http.StatusOK)
	w.Write(pixelGIF)
}

func (h *Handler) click(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		http.Error(w, "invalid redirect target", http.StatusBadRequest)
		return
	}
	if id, ok := parseEID(r); ok {
		h.publish(r, Event{Kind: KindClick, EmailSendID: id, URL: target})
	}
	// 307 keeps intermediaries from caching the redirect per send id.
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

func (h *Handler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := parseEID(r)
	if !ok {
		http.Error(w, "missing eid", http.StatusBadRequest)
		return
	}
	h.publish(r, Event{Kind: KindUnsubscribe, EmailSendID: id})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!DOCTYPE html>
<html><head><title>Unsubscribed</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4rem;">
<h1>You've been unsubscribed</h1>
<p>You will no longer receive emails from this list.</p>
</body></html>`)
}

func (h *Handler) publish(r *http.Request, e Event) {
	e.OccurredAt = time.Now().UTC()
	e.UserAgent = r.UserAgent()
	e.IP = clientIP(r)
	if err := h.pub.Publish(r.Context(), e); err != nil {
		logger.Error("tracking publish failed", "kind", e.Kind, "error", err.Error())
	}
}

func parseEID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.URL.Query().Get("eid"))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	return r.RemoteAddr
}
