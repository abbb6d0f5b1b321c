package params

import (
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

func init() {
	viper.SetEnvPrefix("GUARDD")
	viper.AutomaticEnv()
}

const (
	UsersDir = "users"

	UserStateDBName = "state.db"
)

var (
	LocationBucket = []byte("location")
	RewardBucket   = []byte("reward")

	CurrentLocationKey = []byte("current")
	RewardStateKey     = []byte("state")
)

// DatadirRoot is where per-user state lives, e.g. ~/.guardd/users/<id>/state.db.
// Override with GUARDD_DATADIR.
var DatadirRoot = func() string {
	if dir := viper.GetString("datadir"); dir != "" {
		return dir
	}
	home, err := homedir.Dir()
	if err != nil {
		panic(err)
	}
	return filepath.Join(home, ".guardd")
}()

var DefaultDedupeCacheSize = 10_000

var CacheLastKnownTTL = 7 * 24 * time.Hour

// S2CellLevel is the cell level stamped on published samples; level 16
// cells are around city-block size, coarse enough not to leak more than
// the sample itself already does.
var S2CellLevel = 16

// InfluxDB export is enabled when GUARDD_INFLUXDB_URL is set.
var (
	InfluxURL    = viper.GetString("influxdb_url")
	InfluxToken  = viper.GetString("influxdb_token")
	InfluxOrg    = viper.GetString("influxdb_org")
	InfluxBucket = viper.GetString("influxdb_bucket")
)
