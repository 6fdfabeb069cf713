package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved server configuration
type Config struct {
	Addr      string
	JoinCode  string
	PublicURL string
	Match     MatchConfig

	DBPath        string
	ReplayDir     string
	AdminPassHash string

	LogLevel  string
	LogFormat string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.joinCode", "")
	v.SetDefault("server.publicUrl", "ws://localhost:5000/")

	v.SetDefault("game.mode", "classic")
	v.SetDefault("game.dimension", 24)
	v.SetDefault("game.seed", 0)
	v.SetDefault("game.broadcastInterval", 100*time.Millisecond)
	v.SetDefault("game.ticks", 3000)
	v.SetDefault("game.players", 4)
	v.SetDefault("game.teams", 2)
	v.SetDefault("game.zones", 2)
	v.SetDefault("game.viewRadius", 0)
	v.SetDefault("game.sandbox", false)
	v.SetDefault("game.quickJoin", false)
	v.SetDefault("game.zoneCaptureTicks", DefaultZoneCaptureTicks)
	v.SetDefault("game.zoneGraceTicks", DefaultZoneGraceTicks)

	v.SetDefault("net.pingInterval", time.Second)
	v.SetDefault("net.pingDelay", 500*time.Millisecond)
	v.SetDefault("net.noPongTimeout", time.Second)
	v.SetDefault("net.sendTimeout", time.Second)

	v.SetDefault("db.path", "stereotanks.db")
	v.SetDefault("replay.dir", "")
	v.SetDefault("admin.passwordHash", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("stereotanks", pflag.ContinueOnError)
	fs.String("config", "", "path to a config file")
	fs.String("server.addr", ":5000", "HTTP listen address")
	fs.String("server.joinCode", "", "code clients must present to join")
	fs.String("game.mode", "classic", "game mode (classic|team)")
	fs.Int("game.dimension", 24, "grid dimension")
	fs.Int64("game.seed", 0, "map seed (0 = random)")
	fs.Duration("game.broadcastInterval", 100*time.Millisecond, "tick interval")
	fs.Int("game.ticks", 3000, "ticks per match (0 = unlimited)")
	fs.Int("game.players", 4, "players needed to start")
	fs.Bool("game.sandbox", false, "let players join and leave at any time")
	fs.Bool("game.quickJoin", false, "allow the quickJoin handshake flag")
	fs.Duration("net.noPongTimeout", time.Second, "pong timeout before the retry ping")
	fs.String("db.path", "stereotanks.db", "sqlite database path")
	fs.String("replay.dir", "", "directory for replay files (empty disables)")
	fs.String("log.level", "info", "log level")
	fs.String("log.format", "console", "log format (console|json)")
	return fs
}

// LoadConfig resolves defaults, an optional config file, STEREOTANKS_*
// environment variables (including a .env file) and flags, in that
// order of increasing precedence.
func LoadConfig(args []string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("stereotanks")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("STEREOTANKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name != "config" && f.Changed {
			v.Set(f.Name, f.Value.String())
		}
	})

	return configFromViper(v)
}

func configFromViper(v *viper.Viper) (*Config, error) {
	mode, err := ParseGameMode(v.GetString("game.mode"))
	if err != nil {
		return nil, err
	}
	seed := v.GetInt64("game.seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	m := DefaultMatchConfig(mode)
	m.Dim = v.GetInt("game.dimension")
	m.Seed = seed
	m.TickInterval = v.GetDuration("game.broadcastInterval")
	m.Ticks = v.GetInt("game.ticks")
	m.MaxPlayers = v.GetInt("game.players")
	m.TeamCount = v.GetInt("game.teams")
	m.ZoneCount = v.GetInt("game.zones")
	m.ViewRadius = v.GetInt("game.viewRadius")
	m.Sandbox = v.GetBool("game.sandbox")
	m.QuickJoin = v.GetBool("game.quickJoin")
	m.Zone = ZoneConfig{
		CaptureTicks: v.GetInt("game.zoneCaptureTicks"),
		GraceTicks:   v.GetInt("game.zoneGraceTicks"),
	}
	m.PingInterval = v.GetDuration("net.pingInterval")
	m.PingDelay = v.GetDuration("net.pingDelay")
	m.NoPongTimeout = v.GetDuration("net.noPongTimeout")
	m.SendTimeout = v.GetDuration("net.sendTimeout")
	m.JoinCode = v.GetString("server.joinCode")

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &Config{
		Addr:          v.GetString("server.addr"),
		JoinCode:      m.JoinCode,
		PublicURL:     v.GetString("server.publicUrl"),
		Match:         m,
		DBPath:        v.GetString("db.path"),
		ReplayDir:     v.GetString("replay.dir"),
		AdminPassHash: v.GetString("admin.passwordHash"),
		LogLevel:      v.GetString("log.level"),
		LogFormat:     v.GetString("log.format"),
	}, nil
}
