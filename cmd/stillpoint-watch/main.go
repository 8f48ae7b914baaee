package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// frame is the subset of the daemon's state envelope this tool prints.
type frame struct {
	Type string `json:"type"`
	Data struct {
		Phase       string  `json:"phase"`
		Selected    int     `json:"selected_minutes"`
		Progress    float64 `json:"progress"`
		Remaining   string  `json:"remaining"`
		Preparation string  `json:"preparation"`
		Affirmation string  `json:"affirmation"`
		GongPlaying bool    `json:"interval_gong_playing"`
	} `json:"data"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:3002/ws/state", "stillpointd state websocket URL")
		raw   = flag.Bool("raw", false, "Print raw JSON frames")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	var writeMu sync.Mutex

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	go func() {
		for range pingTicker.C {
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				log.Printf("ping failed: %v", err)
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		var last string
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			// The daemon sends a frame per state change; keep the connection
			// alive while it is idle.
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			if messageType != websocket.TextMessage {
				continue
			}
			if *raw {
				fmt.Println(string(message))
				continue
			}
			line, ok := formatFrame(message)
			if !ok {
				fmt.Printf("[TEXT] %s\n", string(message))
				continue
			}
			if line != last {
				fmt.Println(line)
				last = line
			}
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// formatFrame renders one state frame as a single status line.
func formatFrame(message []byte) (string, bool) {
	var f frame
	if err := json.Unmarshal(message, &f); err != nil || f.Data.Phase == "" {
		return "", false
	}

	switch f.Data.Phase {
	case "idle":
		return fmt.Sprintf("[IDLE] %d min selected", f.Data.Selected), true
	case "preparation":
		return fmt.Sprintf("[PREPARATION] starting in %s", f.Data.Preparation), true
	case "completed":
		return fmt.Sprintf("[COMPLETED] %s", f.Data.Affirmation), true
	}

	line := fmt.Sprintf("[%s] %s  %3.0f%%", strings.ToUpper(f.Data.Phase), f.Data.Remaining, f.Data.Progress*100)
	if f.Data.GongPlaying {
		line += "  (gong)"
	}
	return line, true
}
