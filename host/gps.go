package host

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/jd3nn1s/skytraq"
	log "github.com/sirupsen/logrus"
)

const (
	// maximum horizontal dilution of precision
	maxHDOP = 500
)

type GPS interface {
	Close() error
	Start(context.Context, skytraq.Callbacks) error
}

// to allow testing
var gpsConnect = func(p string) (GPS, error) {
	return skytraq.Connect(p)
}

// GPSSource reads navigation fixes from the receiver and publishes them on
// the gps topic. It reconnects on failure like the board link.
type GPSSource struct {
	port      string
	hub       *Hub
	c         GPS
	connected atomic.Bool
	now       func() time.Time
}

func NewGPSSource(port string, hub *Hub) *GPSSource {
	return &GPSSource{
		port: port,
		hub:  hub,
		now:  time.Now,
	}
}

// Run blocks until the context is canceled.
func (g *GPSSource) Run(ctx context.Context) error {
	return retry(ctx, g)
}

// Connected reports whether the receiver link is currently up.
func (g *GPSSource) Connected() bool {
	return g.connected.Load()
}

func (g *GPSSource) Name() string {
	return "gps"
}

func (g *GPSSource) Open() error {
	c, err := gpsConnect(g.port)
	g.c = c
	if err == nil {
		g.connected.Store(true)
		g.hub.Publish(TopicStatus, Status{Key: g.Name(), Value: "connected"})
	}
	return err
}

func (g *GPSSource) Close() error {
	if g.connected.Swap(false) {
		g.hub.Publish(TopicStatus, Status{Key: g.Name(), Value: "disconnected"})
	}
	if g.c == nil {
		return nil
	}
	return g.c.Close()
}

func (g *GPSSource) Start(ctx context.Context) error {
	return g.c.Start(ctx, skytraq.Callbacks{
		SoftwareVersion: func(version skytraq.SoftwareVersion) {
			log.Infof("gps software version: %v", version)
		},
		NavData: g.navDataFn,
	})
}

func (g *GPSSource) navDataFn(navData skytraq.NavData) {
	if navData.Fix == skytraq.FixNone {
		log.Warnf("no satellite fix")
		return
	}
	if navData.HDOP > maxHDOP {
		log.WithField("HDOP", navData.HDOP).Warn("poor resolution")
		return
	}
	speed := math.Sqrt(math.Pow(float64(navData.VX), 2) +
		math.Pow(float64(navData.VY), 2))
	track := math.Atan(float64(navData.VX)/float64(navData.VY)) * 180 / math.Pi
	if math.IsNaN(track) {
		track = 0
	}

	g.hub.Publish(TopicGPS, GpsData{
		Latitude:   float64(navData.Latitude) / math.Pow(10, 7),
		Longitude:  float64(navData.Longitude) / math.Pow(10, 7),
		Altitude:   float64(navData.Altitude) / 100.0,
		Speed:      speed,
		Track:      track,
		Satellites: int(navData.SatelliteCount),
		Time:       timestamp(g.now()),
	})
}
