package goSecure

import "time"

// SecurityReport summarizes the effective security posture of an Engine.
// It carries no secrets and is safe to log at startup.
type SecurityReport struct {
	ProductionMode   bool
	SigningAlgorithm string
	SessionTTL       time.Duration
	Argon2           PasswordConfigReport
	TOTP             TOTPReport
	BackupCodeCount  int
	BackupCodeCost   int

	LoginLimiterActive    bool
	OTPLimiterActive      bool
	BackupLimiterActive   bool
	PasswordLimiterActive bool
	IPThrottleActive      bool

	RevokeSessionsOnPasswordChange bool
	ReaperActive                   bool
	AuditActive                    bool
	MetricsActive                  bool
}

// PasswordConfigReport mirrors the argon2id parameters.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

// TOTPReport mirrors the one-time-password parameters.
type TOTPReport struct {
	Issuer string
	Period time.Duration
	Skew   int
}

// SecurityReport returns the posture derived from the engine's config.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config

	return SecurityReport{
		ProductionMode:   cfg.Security.ProductionMode,
		SigningAlgorithm: cfg.Bearer.SigningMethod,
		SessionTTL:       cfg.Session.TTL,
		Argon2: PasswordConfigReport{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
			MinLength:   cfg.Password.MinLength,
		},
		TOTP: TOTPReport{
			Issuer: cfg.TOTP.Issuer,
			Period: cfg.TOTP.Period,
			Skew:   cfg.TOTP.Skew,
		},
		BackupCodeCount: cfg.BackupCodes.Count,
		BackupCodeCost:  cfg.BackupCodes.Cost,

		LoginLimiterActive:    cfg.Security.MaxLoginAttempts > 0 && cfg.Security.LoginCooldownDuration > 0,
		OTPLimiterActive:      e.otpLimiter != nil,
		BackupLimiterActive:   e.backupLimiter != nil,
		PasswordLimiterActive: e.passwordLimiter != nil,
		IPThrottleActive:      cfg.Security.MaxLoginAttempts > 0 && cfg.Security.EnableIPThrottle,

		RevokeSessionsOnPasswordChange: cfg.Password.RevokeOtherSessionsOnChange,
		ReaperActive:                   cfg.Session.ReaperInterval > 0,
		AuditActive:                    cfg.Audit.Enabled,
		MetricsActive:                  cfg.Metrics.Enabled,
	}
}
