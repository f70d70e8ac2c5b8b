package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/smartserow/serow/host"
)

func main() {
	configFile := flag.String("config", "hostd.toml", "configuration file next to the binary")
	flag.Parse()

	log.SetLevel(log.InfoLevel)

	cfg, err := host.LoadConfig(*configFile)
	if err != nil {
		log.Fatal("unable to load configuration: ", err)
	}

	ctx := context.Background()

	hub := host.NewHub()
	link := host.NewLink(cfg.Serial, hub)
	link.Connect()

	var gps *host.GPSSource
	if cfg.GPS.Enabled {
		gps = host.NewGPSSource(cfg.GPS.Port, hub)
		go func() {
			if err := gps.Run(ctx); err != nil {
				log.Info("gps stopped: ", err)
			}
		}()
	}

	room := host.NewRoom(hub, link, gps)
	go room.Run(ctx)

	http.Handle("/ws", room)
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"arduino": link.State().String(),
			"gps":     gps != nil && gps.Connected(),
		})
	})
	http.HandleFunc("/arduino", latestHandler(hub, host.TopicArduino))
	http.HandleFunc("/arduino/history", historyHandler(hub, host.TopicArduino))
	http.HandleFunc("/gps", latestHandler(hub, host.TopicGPS))
	http.HandleFunc("/gps/history", historyHandler(hub, host.TopicGPS))
	http.HandleFunc("/debug", func(w http.ResponseWriter, r *http.Request) {
		entries := hub.DebugLog()
		out := make([]map[string]interface{}, 0, len(entries))
		for _, ev := range entries {
			out = append(out, map[string]interface{}{
				"topic": ev.Topic.String(),
				"data":  ev.Data,
			})
		}
		writeJSON(w, out)
	})

	log.WithField("listen", cfg.Web.Listen).Info("dashboard server starting")
	log.Fatal(http.ListenAndServe(cfg.Web.Listen, nil))
}

func historyHandler(hub *host.Hub, topic host.Topic) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events := hub.History(topic)
		out := make([]interface{}, 0, len(events))
		for _, ev := range events {
			out = append(out, ev.Data)
		}
		writeJSON(w, out)
	}
}

func latestHandler(hub *host.Hub, topic host.Topic) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ev, ok := hub.Latest(topic)
		if !ok {
			http.Error(w, "no data yet", http.StatusNotFound)
			return
		}
		writeJSON(w, ev.Data)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithField("err", err).Warn("unable to encode response")
	}
}
