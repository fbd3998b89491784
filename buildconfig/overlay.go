package buildconfig

import (
	"strings"

	"github.com/spf13/viper"
)

// ApplyEnvOverlay lets operators override tuning knobs (thread count, snapshot
// interval, resident water marks) via ENTWINE_TUNING_* environment variables without
// touching the config document, useful for CI matrices that vary parallelism without
// forking the JSON. Any other field must come from the document itself.
func ApplyEnvOverlay(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix("entwine")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.IsSet("tuning.threads") {
		cfg.Tuning.Threads = v.GetInt("tuning.threads")
	}
	if v.IsSet("tuning.snapshot") {
		cfg.Tuning.Snapshot = v.GetInt("tuning.snapshot")
	}
	if v.IsSet("tuning.residentHighWaterMark") {
		cfg.Tuning.ResidentHighWaterMark = v.GetInt("tuning.residentHighWaterMark")
	}
	if v.IsSet("tuning.residentLowWaterMark") {
		cfg.Tuning.ResidentLowWaterMark = v.GetInt("tuning.residentLowWaterMark")
	}
}
