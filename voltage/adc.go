package voltage

import (
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// IIOADC reads raw samples from a Linux industrial-io sysfs attribute,
// e.g. /sys/bus/iio/devices/iio:device0/in_voltage0_raw.
type IIOADC struct {
	Path string
}

func (a *IIOADC) Read() int {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		log.WithField("err", err).Warn("unable to read adc")
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		log.WithField("err", err).Warn("unable to parse adc value")
		return 0
	}
	return v
}
