package handler

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/emind-bff/internal/carousel"
)

const (
	eventMount      = "mount"
	eventUnmount    = "unmount"
	eventHoverEnter = "hover_enter"
	eventHoverLeave = "hover_leave"
	eventCount      = "count"

	wsWriteTimeout = 5 * time.Second
)

// checkOrigin возвращает проверку заголовка Origin по списку разрешённых источников.
// Для пустого списка возвращается nil, и websocket.Upgrader проверяет совпадение с Host.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	origins := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
		if o == "" {
			continue
		}
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		origins[o] = struct{}{}
	}
	if len(origins) == 0 {
		return nil
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := origins[strings.ToLower(origin)]
		return ok
	}
}

// carouselEvent описывает событие, которое присылает интерфейс.
type carouselEvent struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// carouselMessage описывает текущую позицию карусели.
type carouselMessage struct {
	Position int `json:"position"`
}

// Carousel обслуживает websocket автопрокрутки карусели: принимает события интерфейса
// и отправляет новую позицию после каждого шага.
func (h *Handler) Carousel(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("carousel upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	c := carousel.New(h.carouselInterval)
	defer c.Unmount()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range c.Positions() {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(carouselMessage{Position: p}); err != nil {
				h.logger.Debug("carousel write error", zap.Error(err))
				c.Unmount()
				_ = conn.Close()
			}
		}
	}()

	for {
		var ev carouselEvent
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}

		switch ev.Type {
		case eventMount:
			c.Mount(ev.Count)
		case eventCount:
			c.SetCount(ev.Count)
		case eventHoverEnter:
			c.HoverEnter()
		case eventHoverLeave:
			c.HoverLeave()
		case eventUnmount:
			c.Unmount()
		default:
			h.logger.Debug("unknown carousel event", zap.String("type", ev.Type))
		}
	}

	c.Unmount()
	<-done
}
