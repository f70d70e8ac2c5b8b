package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/smartserow/serow"
	"github.com/smartserow/serow/comms"
	"github.com/smartserow/serow/motocan"
	"github.com/smartserow/serow/voltage"
	"github.com/smartserow/serow/wt61"
)

const (
	calibrateTimeout = 5 * time.Second
	canRetrySleep    = 3 * time.Second
	hostReadTimeout  = 5 * time.Millisecond
	hostBaud         = 115200
)

func main() {
	testMode := flag.Bool("testmode", false, "run with simulated sensors")
	printTelemetry := flag.Bool("print-telemetry", false, "write telemetry to stdout instead of the host port")
	imuPort := flag.String("imu-port", "/dev/ttyS1", "WT61 IMU serial port")
	hostPort := flag.String("host-port", "/dev/serial0", "host link serial port")
	canIf := flag.String("can", "can0", "CAN bus interface")
	adcPath := flag.String("adc", "/sys/bus/iio/devices/iio:device0/in_voltage0_raw", "IIO raw ADC path")
	flag.Parse()

	log.SetLevel(log.InfoLevel)

	ctx := context.Background()

	var hostOut io.Writer
	var hostIn io.Reader
	if *printTelemetry || *testMode {
		hostOut = os.Stdout
		hostIn = idleReader{}
	} else {
		port, err := serial.Open(*hostPort, &serial.Mode{BaudRate: hostBaud})
		if err != nil {
			log.Fatal("unable to open host port: ", err)
		}
		if err := port.SetReadTimeout(hostReadTimeout); err != nil {
			log.Fatal("unable to set host port read timeout: ", err)
		}
		hostOut = port
		hostIn = port
	}
	ch := comms.NewChannel(hostOut)
	status(ch, "BOOT", "starting")

	var imu serow.IMU
	var adc voltage.ADC
	var rpm serow.RPMSource
	var gear serow.GearSource
	if *testMode {
		imu = serow.NewSimIMU()
		adc = &serow.SimADC{}
		rpm = &serow.RampRPM{}
		gear = serow.BandGear{}
	} else {
		conn, err := wt61.Connect(*imuPort)
		if err != nil {
			log.Fatal("unable to connect to imu: ", err)
		}
		calibrate(ctx, ch, conn)
		imu = conn
		adc = &voltage.IIOADC{Path: *adcPath}

		src := &motocan.Source{}
		go runCAN(ctx, *canIf, src)
		rpm = src
		gear = serow.BandGear{}
	}

	volts := voltage.NewSampler(adc)
	status(ch, "VBAT", fmt.Sprintf("%.2f", volts.Read()))
	status(ch, "BOOT", "ok")

	board := serow.NewBoard(imu, volts, rpm, gear, ch, hostIn)
	board.OnHeartbeat(func(on bool) {
		log.WithField("on", on).Debug("heartbeat")
	})
	log.Fatal(board.Run(ctx))
}

// calibrate holds the board still for a few samples; if the IMU is not
// reporting in time the board runs uncalibrated rather than hanging boot.
func calibrate(ctx context.Context, ch *comms.Channel, conn *wt61.Connection) {
	calCtx, cancel := context.WithTimeout(ctx, calibrateTimeout)
	defer cancel()
	if err := conn.Calibrate(calCtx); err != nil {
		log.WithField("err", err).Warn("calibration skipped, proceeding uncalibrated")
		status(ch, "IMU", "uncalibrated")
		return
	}
	status(ch, "IMU", "calibrated")
}

// runCAN keeps the CAN connection up, reconnecting after failures.
func runCAN(ctx context.Context, ifName string, src *motocan.Source) {
	for ctx.Err() == nil {
		conn, err := motocan.Connect(ifName)
		if err != nil {
			log.WithField("err", err).Warn("unable to open can bus")
			time.Sleep(canRetrySleep)
			continue
		}
		if err := conn.Start(ctx, src.Callbacks()); err != nil {
			log.WithField("err", err).Warn("can bus stopped")
		}
		time.Sleep(canRetrySleep)
	}
}

func status(ch *comms.Channel, key string, value interface{}) {
	if err := ch.SendStatus(key, value); err != nil {
		log.WithField("err", err).Warn("unable to send status")
	}
}

// idleReader stands in for the host link when telemetry goes to stdout.
type idleReader struct{}

func (idleReader) Read([]byte) (int, error) {
	return 0, io.EOF
}
