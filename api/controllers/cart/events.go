package cart

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/angelmondragon/storefront/api/responses"
	cartsvc "github.com/angelmondragon/storefront/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

const keepAliveInterval = 25 * time.Second

// CartEvents streams every published cart snapshot as server-sent events,
// optimistic and rolled back ones included.
func CartEvents(engine Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		initial, updates, cancel, err := engine.Subscribe(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if err := writeEvent(w, "cart", initial); err != nil {
			return
		}
		flusher.Flush()

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case c, open := <-updates:
				if !open {
					_, _ = io.WriteString(w, "event: closed\ndata: {}\n\n")
					flusher.Flush()
					return
				}
				if err := writeEvent(w, "cart", c); err != nil {
					logg.Warn(logg.WithField(r.Context(), "reason", err.Error()), "cart event write failed")
					return
				}
				flusher.Flush()
			case <-keepAlive.C:
				if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w io.Writer, name string, c cartsvc.Cart) error {
	payload, err := json.Marshal(newCartResponse(c))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
	return err
}
