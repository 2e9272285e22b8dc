package eduauth

import (
	"errors"
	"time"

	"github.com/aimlabs/eduauth/internal/audit"
	"github.com/aimlabs/eduauth/internal/limiters"
	"github.com/aimlabs/eduauth/password"
	"github.com/aimlabs/eduauth/token"
)

// Config is the engine configuration. Zero values fall back to the
// documented defaults on Normalize; only JWT.Secret has no default.
// Env tags follow the EDUAUTH_ prefix convention used by cmd/eduauth.
type Config struct {
	JWT          JWTConfig          `envPrefix:"JWT_"`
	Lockout      LockoutConfig      `envPrefix:"LOCKOUT_"`
	IPLockout    LockoutConfig      `envPrefix:"IP_LOCKOUT_"`
	Registration RegistrationConfig `envPrefix:"REGISTRATION_"`
	Password     PasswordConfig     `envPrefix:"PASSWORD_"`
	Audit        AuditConfig        `envPrefix:"AUDIT_"`
}

// JWTConfig holds signing material and token lifetimes.
type JWTConfig struct {
	// Secret is the HS256 key, at least 32 bytes.
	Secret     string        `env:"SECRET,unset"`
	Issuer     string        `env:"ISSUER" envDefault:"eduauth"`
	AccessTTL  time.Duration `env:"ACCESS_TTL" envDefault:"1h"`
	RefreshTTL time.Duration `env:"REFRESH_TTL" envDefault:"720h"`
	ResetTTL   time.Duration `env:"RESET_TTL" envDefault:"30m"`
	Leeway     time.Duration `env:"LEEWAY" envDefault:"30s"`
}

// LockoutConfig tunes a sliding-window failure tracker.
type LockoutConfig struct {
	Window        time.Duration `env:"WINDOW"`
	Threshold     int           `env:"THRESHOLD"`
	BlockDuration time.Duration `env:"BLOCK_DURATION"`
}

// RegistrationConfig tunes the OTP-gated registration flow.
type RegistrationConfig struct {
	// PendingTTL bounds how long a staged registration may wait for its
	// OTP confirmation.
	PendingTTL time.Duration `env:"PENDING_TTL" envDefault:"15m"`
	// OTPTTL is the code lifetime enforced locally on verify and resend.
	// The provider may expire codes earlier; never later.
	OTPTTL time.Duration `env:"OTP_TTL" envDefault:"15m"`
}

// PasswordConfig selects argon2id cost parameters. Zero means the
// package defaults.
type PasswordConfig struct {
	Memory      uint32 `env:"MEMORY_KB"`
	Time        uint32 `env:"TIME"`
	Parallelism uint8  `env:"PARALLELISM"`
	// UpgradeOnLogin rehashes stored credentials that predate the current
	// cost parameters whenever a login proves the plaintext.
	UpgradeOnLogin bool `env:"UPGRADE_ON_LOGIN" envDefault:"true"`
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED" envDefault:"true"`
	BufferSize int  `env:"BUFFER_SIZE" envDefault:"256"`
	DropIfFull bool `env:"DROP_IF_FULL" envDefault:"true"`
}

// DefaultConfig returns the engine defaults used when a section is left
// zero. The JWT secret stays empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Issuer:     "eduauth",
			AccessTTL:  time.Hour,
			RefreshTTL: 30 * 24 * time.Hour,
			ResetTTL:   30 * time.Minute,
			Leeway:     30 * time.Second,
		},
		Lockout: LockoutConfig{
			Window:        time.Hour,
			Threshold:     5,
			BlockDuration: 30 * time.Minute,
		},
		IPLockout: LockoutConfig{
			Window:        time.Hour,
			Threshold:     20,
			BlockDuration: 30 * time.Minute,
		},
		Registration: RegistrationConfig{
			PendingTTL: 15 * time.Minute,
			OTPTTL:     15 * time.Minute,
		},
		Password: PasswordConfig{
			UpgradeOnLogin: true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

// Normalize fills zero fields from DefaultConfig and validates what
// cannot be defaulted.
func (c *Config) Normalize() error {
	def := DefaultConfig()

	if len(c.JWT.Secret) < 32 {
		return errors.New("config: JWT secret must be at least 32 bytes")
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = def.JWT.Issuer
	}
	if c.JWT.AccessTTL <= 0 {
		c.JWT.AccessTTL = def.JWT.AccessTTL
	}
	if c.JWT.RefreshTTL <= 0 {
		c.JWT.RefreshTTL = def.JWT.RefreshTTL
	}
	if c.JWT.ResetTTL <= 0 {
		c.JWT.ResetTTL = def.JWT.ResetTTL
	}
	if c.JWT.Leeway < 0 {
		c.JWT.Leeway = def.JWT.Leeway
	}

	normalizeLockout(&c.Lockout, def.Lockout)
	normalizeLockout(&c.IPLockout, def.IPLockout)

	if c.Registration.PendingTTL <= 0 {
		c.Registration.PendingTTL = def.Registration.PendingTTL
	}
	if c.Registration.OTPTTL <= 0 {
		c.Registration.OTPTTL = def.Registration.OTPTTL
	}
	if c.Registration.OTPTTL > c.Registration.PendingTTL {
		return errors.New("config: OTP TTL must not exceed pending registration TTL")
	}

	if c.Audit.BufferSize <= 0 {
		c.Audit.BufferSize = def.Audit.BufferSize
	}
	return nil
}

func normalizeLockout(cfg *LockoutConfig, def LockoutConfig) {
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = def.BlockDuration
	}
}

func (c Config) tokenConfig() token.Config {
	return token.Config{
		Secret:     []byte(c.JWT.Secret),
		Issuer:     c.JWT.Issuer,
		AccessTTL:  c.JWT.AccessTTL,
		RefreshTTL: c.JWT.RefreshTTL,
		ResetTTL:   c.JWT.ResetTTL,
		Leeway:     c.JWT.Leeway,
	}
}

func (c Config) hashConfig() password.Config {
	cfg := password.DefaultConfig()
	if c.Password.Memory > 0 {
		cfg.Memory = c.Password.Memory
	}
	if c.Password.Time > 0 {
		cfg.Time = c.Password.Time
	}
	if c.Password.Parallelism > 0 {
		cfg.Parallelism = c.Password.Parallelism
	}
	return cfg
}

func (c LockoutConfig) trackerConfig() limiters.TrackerConfig {
	return limiters.TrackerConfig{
		Window:        c.Window,
		Threshold:     c.Threshold,
		BlockDuration: c.BlockDuration,
	}
}

func (c AuditConfig) dispatcherConfig() audit.Config {
	return audit.Config{
		Enabled:    c.Enabled,
		BufferSize: c.BufferSize,
		DropIfFull: c.DropIfFull,
	}
}
