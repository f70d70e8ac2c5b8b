package host

import (
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

type SerialConfig struct {
	Port string
	Baud int
}

type GPSConfig struct {
	Port    string
	Enabled bool
}

type WebConfig struct {
	Listen string
}

type Config struct {
	Serial SerialConfig
	GPS    GPSConfig
	Web    WebConfig
}

// LoadConfig reads a TOML config from a file next to the binary.
func LoadConfig(fileName string) (*Config, error) {
	dir, err := filepath.Abs(filepath.Dir(os.Args[0]))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to determine binary location")
	}
	file, err := os.Open(filepath.Join(dir, fileName))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open file %s", fileName)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

func LoadConfigFromReader(configReader io.Reader) (*Config, error) {
	configData, err := io.ReadAll(configReader)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read config reader")
	}
	config := Config{
		Serial: SerialConfig{
			Port: "/dev/serial0",
			Baud: 115200,
		},
		GPS: GPSConfig{
			Port: "/dev/ttyAMA0",
		},
		Web: WebConfig{
			Listen: ":5000",
		},
	}
	if _, err := toml.Decode(string(configData), &config); err != nil {
		return nil, errors.Wrapf(err, "unable to load configuration")
	}
	return &config, nil
}
