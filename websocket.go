package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"gregoryjjb/glowchain/device"
	"gregoryjjb/glowchain/fade"
)

// createWebsocketHandler streams every finished fade as JSON until the
// client goes away.
func createWebsocketHandler(dev *device.Device) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			http.Error(w, fmt.Sprintf("websocket upgrade failed: %s", err), http.StatusInternalServerError)
			return
		}
		defer c.Close(websocket.StatusInternalError, "closing")

		unsub, events := dev.Subscribe()
		defer unsub()

		// Nothing is read from clients; this only notices them leaving
		ctx := c.CloseRead(r.Context())

		for {
			select {
			case <-ctx.Done():
				c.Close(websocket.StatusNormalClosure, "")
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := writeTimeout(ctx, 5*time.Second, c, ev); err != nil {
					srvlog().Debug().Err(err).Msg("Websocket write failed")
					return
				}
			}
		}
	}
}

func writeTimeout(ctx context.Context, timeout time.Duration, c *websocket.Conn, ev fade.Event) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return wsjson.Write(ctx, c, ev)
}
