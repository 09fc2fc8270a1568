package goSecure

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goSecure/backupcode"
	"github.com/MrEthical07/goSecure/session"
)

// Config holds every Engine setting.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable; the Builder keeps its own copy.
type Config struct {
	TOTP        TOTPConfig
	BackupCodes BackupCodeConfig
	Password    PasswordConfig
	Session     SessionConfig
	Bearer      BearerConfig
	Security    SecurityConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
TWO-FACTOR CONFIG
====================================
*/

// TOTPConfig controls the one-time-password engine and enrollment output.
type TOTPConfig struct {
	Issuer     string
	Period     time.Duration
	Skew       int
	QRCodeSize int // pixels; 0 disables server-side QR rendering
}

// BackupCodeConfig controls backup-code batches.
type BackupCodeConfig struct {
	Count int
	Cost  int // bcrypt work factor
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters and the rotation policy.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MaxBytes       int
	MinLength      int
	UpgradeOnLogin bool

	// RevokeOtherSessionsOnChange revokes every session except the caller's
	// after a successful ChangePassword.
	RevokeOtherSessionsOnChange bool
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the session registry and its reaper.
type SessionConfig struct {
	RedisPrefix    string
	TTL            time.Duration
	ReaperInterval time.Duration // 0 disables the reaper
	Retention      time.Duration
	LockStripes    int
}

// BearerConfig controls the signed bearer handed out at login. Its lifetime
// is Session.TTL.
type BearerConfig struct {
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds failure-limiter thresholds. A zero attempt count
// disables that limiter.
type SecurityConfig struct {
	ProductionMode bool

	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration

	MaxOTPAttempts int
	OTPCooldown    time.Duration

	MaxBackupCodeAttempts int
	BackupCodeCooldown    time.Duration

	MaxPasswordAttempts int
	PasswordCooldown    time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a development configuration. Bearer keys must be
// supplied before Build.
func DefaultConfig() Config {
	return Config{
		TOTP: TOTPConfig{
			Issuer:     "goSecure",
			Period:     30 * time.Second,
			Skew:       1,
			QRCodeSize: 256,
		},
		BackupCodes: BackupCodeConfig{
			Count: backupcode.DefaultCount,
			Cost:  backupcode.DefaultCost,
		},
		Password: PasswordConfig{
			Memory:                      65536,
			Time:                        3,
			Parallelism:                 2,
			SaltLength:                  16,
			KeyLength:                   32,
			MaxBytes:                    1024,
			MinLength:                   6,
			UpgradeOnLogin:              true,
			RevokeOtherSessionsOnChange: false,
		},
		Session: SessionConfig{
			RedisPrefix:    "ss",
			TTL:            session.DefaultTTL,
			ReaperInterval: time.Hour,
			Retention:      30 * 24 * time.Hour,
			LockStripes:    256,
		},
		Bearer: BearerConfig{
			SigningMethod: "ed25519",
		},
		Security: SecurityConfig{
			ProductionMode:        false,
			EnableIPThrottle:      false,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
			MaxOTPAttempts:        5,
			OTPCooldown:           5 * time.Minute,
			MaxBackupCodeAttempts: 5,
			BackupCodeCooldown:    10 * time.Minute,
			MaxPasswordAttempts:   5,
			PasswordCooldown:      15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Bearer.PrivateKey = cloneBytes(cfg.Bearer.PrivateKey)
	out.Bearer.PublicKey = cloneBytes(cfg.Bearer.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("TOTP Issuer must not be empty")
	}
	if strings.Contains(c.TOTP.Issuer, ":") {
		return errors.New("TOTP Issuer must not contain ':'")
	}
	if c.TOTP.Period < time.Second || c.TOTP.Period%time.Second != 0 {
		return errors.New("TOTP Period must be a positive whole number of seconds")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 5 {
		return errors.New("TOTP Skew must be between 0 and 5")
	}
	if c.TOTP.QRCodeSize < 0 {
		return errors.New("TOTP QRCodeSize must be >= 0")
	}

	if c.BackupCodes.Count <= 0 {
		return errors.New("BackupCodes Count must be > 0")
	}
	if c.BackupCodes.Cost < 4 || c.BackupCodes.Cost > 31 {
		return errors.New("BackupCodes Cost must be between 4 and 31")
	}

	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxBytes < c.Password.MinLength {
		return errors.New("Password MaxBytes must be >= MinLength")
	}

	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.ReaperInterval < 0 || c.Session.Retention < 0 {
		return errors.New("Session ReaperInterval and Retention must be >= 0")
	}

	switch c.Bearer.SigningMethod {
	case "ed25519":
		if len(c.Bearer.PrivateKey) == 0 || len(c.Bearer.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	case "hs256":
		if len(c.Bearer.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
	default:
		return errors.New("unsupported Bearer signing method")
	}
	if c.Bearer.Leeway < 0 || c.Bearer.Leeway > 2*time.Minute {
		return errors.New("Bearer Leeway must be between 0 and 2m")
	}

	if c.Security.MaxLoginAttempts < 0 || c.Security.MaxOTPAttempts < 0 ||
		c.Security.MaxBackupCodeAttempts < 0 || c.Security.MaxPasswordAttempts < 0 {
		return errors.New("Security attempt limits must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0")
	}
	if c.Security.MaxOTPAttempts > 0 && c.Security.OTPCooldown <= 0 {
		return errors.New("Security OTPCooldown must be > 0")
	}
	if c.Security.MaxBackupCodeAttempts > 0 && c.Security.BackupCodeCooldown <= 0 {
		return errors.New("Security BackupCodeCooldown must be > 0")
	}
	if c.Security.MaxPasswordAttempts > 0 && c.Security.PasswordCooldown <= 0 {
		return errors.New("Security PasswordCooldown must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	if c.Security.ProductionMode {
		if c.Bearer.SigningMethod == "hs256" && len(c.Bearer.PrivateKey) < 32 {
			return errors.New("ProductionMode requires hs256 key length >= 256 bits")
		}
		if c.Password.Memory < 64*1024 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
		if c.Password.KeyLength < 32 {
			return errors.New("ProductionMode requires Password KeyLength >= 32")
		}
		if c.BackupCodes.Count < 8 {
			return errors.New("ProductionMode requires BackupCodes Count >= 8")
		}
		if c.BackupCodes.Cost < 10 {
			return errors.New("ProductionMode requires BackupCodes Cost >= 10")
		}
		if c.TOTP.Skew > 2 {
			return errors.New("ProductionMode requires TOTP Skew <= 2")
		}
		if c.Security.MaxOTPAttempts == 0 || c.Security.MaxBackupCodeAttempts == 0 ||
			c.Security.MaxPasswordAttempts == 0 || c.Security.MaxLoginAttempts == 0 {
			return errors.New("ProductionMode requires every failure limiter")
		}
	}

	return nil
}
