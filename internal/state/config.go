package state

import (
	"path/filepath"
	"sync"

	"github.com/dustnet/dustnet/helpers"
	"github.com/dustnet/dustnet/internal/tele"
	"github.com/dustnet/dustnet/log2"
	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
)

type Config struct {
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	LogDebug bool `hcl:"log_debug"`

	Persist struct {
		Root string `hcl:"root"`
	}

	Radio struct {
		Listen    string `hcl:"listen"`
		Broadcast string `hcl:"broadcast"`
	}

	Gateway struct {
		AnnounceSec      int  `hcl:"announce_sec"`
		AlarmSec         int  `hcl:"alarm_sec"`
		RegistryCapacity int  `hcl:"registry_capacity"`
		RegistryPersist  bool `hcl:"registry_persist"`
		TimeLog          bool `hcl:"time_log"`
	}

	Leaf struct {
		Name             string `hcl:"name"`
		SampleIntervalMs int    `hcl:"sample_interval_ms"`
	}

	Sampler struct {
		Mock       bool   `hcl:"mock"`
		SpiBus     string `hcl:"spi_bus"`
		SpiMode    int    `hcl:"spi_mode"`
		SpiSpeed   string `hcl:"spi_speed"`
		Channel    int    `hcl:"channel"`
		Oversample int    `hcl:"oversample"`
		LedChip    string `hcl:"led_chip"`
		LedLine    int    `hcl:"led_line"`
	}

	Indicator struct {
		Enable bool   `hcl:"enable"`
		Chip   string `hcl:"chip"`
		Green  int    `hcl:"green"`
		Blue   int    `hcl:"blue"`
		OnMs   int    `hcl:"on_ms"`
		OffMs  int    `hcl:"off_ms"`
	}

	Uplink struct {
		Device string `hcl:"device"`
		Baud   int    `hcl:"baud"`
	}

	Metrics struct {
		Listen string `hcl:"listen"`
	}

	Tele tele.Config

	Host struct {
		DSN   string  `hcl:"dsn"`
		Scale float64 `hcl:"scale"`
		Table string  `hcl:"table"`
	}

	_copy_guard sync.Mutex //nolint:unused
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

// configReader merges sources into one Config, later sources override.
type configReader struct {
	log  *log2.Log
	fs   FullReader
	c    *Config
	seen map[string]struct{} // normalized paths, include loop guard
	errs []error
}

func (self *configReader) read(source ConfigSource, from string) {
	norm := self.fs.Normalize(source.Name)
	if _, ok := self.seen[norm]; ok {
		if from == "" {
			self.errs = append(self.errs, errors.Errorf("config duplicate source=%s", source.Name))
		} else {
			self.errs = append(self.errs, errors.Errorf("config include loop: from=%s include=%s", from, source.Name))
		}
		return
	}
	self.seen[norm] = struct{}{}
	self.log.Debugf("config reading source='%s' path=%s", source.Name, norm)

	bs, err := self.fs.ReadAll(norm)
	switch {
	case err != nil:
		self.errs = append(self.errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	case bs == nil && source.Optional:
		return
	case bs == nil:
		self.errs = append(self.errs, errors.NotFoundf("config required name=%s path=%s", source.Name, norm))
		return
	}

	if err = hcl.Unmarshal(bs, self.c); err != nil {
		self.errs = append(self.errs, errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs)))
		return
	}
	includes := self.c.XXX_Include
	self.c.XXX_Include = nil
	for _, include := range includes {
		self.read(include, source.Name)
	}
}

// ReadConfig reads names in order, each may include more sources.
// With OsFullReader, relative includes resolve against directory of first name.
func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		log.Fatal("code error [Must]ReadConfig() without names")
	}
	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		osfs.SetBase(dir)
		names[0] = name
	}
	r := &configReader{
		log:  log,
		fs:   fs,
		c:    &Config{},
		seen: make(map[string]struct{}),
	}
	for _, name := range names {
		r.read(ConfigSource{Name: name}, "")
	}
	return r.c, helpers.FoldErrors(r.errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
