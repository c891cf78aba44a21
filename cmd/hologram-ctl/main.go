// hologram-ctl sends control messages to a hologram server and prints what
// it broadcasts.
//
//	hologram-ctl mode VISION
//	hologram-ctl voice stop
//	hologram-ctl watch
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"

	"github.com/teslashibe/go-hologram/internal/log"
	"github.com/teslashibe/go-hologram/pkg/protocol"
)

func main() {
	url := pflag.StringP("url", "u", "ws://localhost:8765/ws", "hologram websocket URL")
	wait := pflag.DurationP("wait", "w", 0, "keep printing broadcasts for this long after sending (0 exits at once)")
	level := pflag.StringP("log", "l", "info", "log level")
	pflag.Usage = usage
	pflag.Parse()

	log.InitWriter(*level, os.Stderr)

	msg, watch, err := buildMessage(pflag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		usage()
		os.Exit(2)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		log.Error("connect failed", "url", *url, "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	if msg != nil {
		if err := conn.WriteJSON(msg); err != nil {
			log.Error("send failed", "error", err)
			os.Exit(1)
		}
		log.Info("sent", "message", msg)
		if !watch && *wait == 0 {
			return
		}
	}

	if *wait > 0 && !watch {
		conn.SetReadDeadline(time.Now().Add(*wait))
	}
	printBroadcasts(conn)
}

// buildMessage turns the command line into a client message. watch reports
// whether to keep printing broadcasts until interrupted.
func buildMessage(args []string) (msg *protocol.Inbound, watch bool, err error) {
	if len(args) == 0 {
		return nil, false, errors.New("missing command")
	}
	switch strings.ToLower(args[0]) {
	case "mode":
		if len(args) != 2 {
			return nil, false, errors.New("usage: mode VISION|VOICE")
		}
		return &protocol.Inbound{Type: protocol.TypeMode, Value: strings.ToUpper(args[1])}, false, nil
	case "voice":
		if len(args) != 2 || (args[1] != "start" && args[1] != "stop") {
			return nil, false, errors.New("usage: voice start|stop")
		}
		return &protocol.Inbound{Type: protocol.TypeVoiceControl, Action: args[1]}, false, nil
	case "watch":
		return nil, true, nil
	default:
		return nil, false, fmt.Errorf("unknown command %q", args[0])
	}
}

func printBroadcasts(conn *websocket.Conn) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var ne interface{ Timeout() bool }
			if errors.As(err, &ne) && ne.Timeout() {
				return
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("connection closed", "error", err)
			}
			return
		}
		var v map[string]any
		if err := json.Unmarshal(data, &v); err != nil {
			fmt.Println(string(data))
			continue
		}
		out, _ := json.Marshal(v)
		fmt.Println(string(out))
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: hologram-ctl [flags] mode VISION|VOICE | voice start|stop | watch\n\nFlags:\n")
	pflag.PrintDefaults()
}
