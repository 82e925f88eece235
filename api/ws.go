package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"gridtokenx_go/utils"
)

// streamBuffer is the per-subscriber block buffer. A session that falls
// further behind misses the older blocks.
const streamBuffer = 16

var blockStreamUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// BlockStreamHandler upgrades the connection to a websocket and pushes every
// committed block to the client as JSON until it disconnects.
func (s *Server) BlockStreamHandler(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "block stream is not enabled on this node")
		return
	}

	conn, err := blockStreamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.LogError("Failed to upgrade block stream connection for %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	blocks, cancel := s.stream.Subscribe(streamBuffer)
	defer cancel()
	utils.LogInfo("Block stream subscriber connected: %s", r.RemoteAddr)

	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case block, ok := <-blocks:
			if !ok {
				return
			}
			if err := conn.WriteJSON(block); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					utils.LogError("Block stream write to %s failed: %v", r.RemoteAddr, err)
				}
				return
			}
		case <-disconnected:
			utils.LogInfo("Block stream subscriber disconnected: %s", r.RemoteAddr)
			return
		}
	}
}
