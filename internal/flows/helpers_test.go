package flows

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goSecure/account"
	"github.com/MrEthical07/goSecure/backupcode"
	"github.com/MrEthical07/goSecure/otp"
	"golang.org/x/crypto/bcrypt"
)

var (
	errNotReady         = errors.New("not ready")
	errInvalidRequest   = errors.New("invalid request")
	errNotFound         = errors.New("account not found")
	errConflict         = errors.New("concurrent update")
	errAlreadyEnabled   = errors.New("already enabled")
	errNotStaged        = errors.New("not staged")
	errNotEnabled       = errors.New("not enabled")
	errTokenFormat      = errors.New("invalid token format")
	errInvalidCode      = errors.New("invalid token")
	errPasswordWrong    = errors.New("password is incorrect")
	errRateLimited      = errors.New("rate limited")
	errUnavailable      = errors.New("unavailable")
	errFieldsRequired   = errors.New("fields required")
	errMismatch         = errors.New("mismatch")
	errTooShort         = errors.New("too short")
	errTooLong          = errors.New("too long")
	errUnchanged        = errors.New("unchanged")
	errCurrentIncorrect = errors.New("current password is incorrect")
	errBadCredentials   = errors.New("invalid credentials")
	errLimiterHit       = errors.New("limiter: budget spent")
)

var testNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// memStore is an in-memory account.Store with version checks.
type memStore struct {
	mu       sync.Mutex
	profiles map[string]account.Profile
	saves    int
	saveErr  error
}

func newMemStore(profiles ...account.Profile) *memStore {
	s := &memStore{profiles: make(map[string]account.Profile)}
	for _, p := range profiles {
		s.profiles[p.AccountID] = p.Clone()
	}
	return s
}

func (s *memStore) load(_ context.Context, id string) (account.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return account.Profile{}, errNotFound
	}
	return p.Clone(), nil
}

func (s *memStore) save(_ context.Context, p account.Profile) (account.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return account.Profile{}, s.saveErr
	}
	cur, ok := s.profiles[p.AccountID]
	if !ok {
		return account.Profile{}, errNotFound
	}
	if cur.Version != p.Version {
		return account.Profile{}, errConflict
	}
	p.Version++
	s.profiles[p.AccountID] = p.Clone()
	s.saves++
	return p.Clone(), nil
}

func (s *memStore) get(id string) account.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[id].Clone()
}

func (s *memStore) access() ProfileAccess {
	return ProfileAccess{
		Now:         func() time.Time { return testNow },
		LoadProfile: s.load,
		SaveProfile: s.save,
	}
}

// memLimiter mirrors the fixed-window failure limiter without Redis.
type memLimiter struct {
	mu     sync.Mutex
	max    int
	counts map[string]int
}

func newMemLimiter(max int) *memLimiter {
	return &memLimiter{max: max, counts: make(map[string]int)}
}

func (l *memLimiter) Check(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts[id] >= l.max {
		return errLimiterHit
	}
	return nil
}

func (l *memLimiter) RecordFailure(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[id]++
	if l.counts[id] >= l.max {
		return errLimiterHit
	}
	return nil
}

func (l *memLimiter) Reset(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counts, id)
	return nil
}

func (l *memLimiter) count(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[id]
}

// Test passwords are stored as "plain:<password>".
func fakeHash(pw string) (string, error) { return "plain:" + pw, nil }

func fakeVerify(candidate, hash string) (bool, error) {
	if !strings.HasPrefix(hash, "plain:") {
		return false, errors.New("unsupported hash")
	}
	return hash == "plain:"+candidate, nil
}

func testOTP() otp.Engine {
	return otp.Engine{Now: func() time.Time { return testNow }}
}

func twoFactorDeps(store *memStore) TwoFactorDeps {
	engine := testOTP()
	codes := backupcode.Manager{Cost: bcrypt.MinCost}
	return TwoFactorDeps{
		ProfileAccess: store.access(),
		NewSecret:     otp.NewSecret,
		ProvisionURI: func(label, secret string) string {
			return otp.ProvisioningURI("Exchange", label, secret)
		},
		RenderQR: func(uri string) (string, error) {
			return otp.QRCodeDataURI(uri, 128)
		},
		IssueBackupCodes: func() ([]string, []string, error) {
			return codes.Issue(backupcode.DefaultCount)
		},
		ConsumeBackupCode: codes.Consume,
		VerifyOTP:         engine.Verify,
		ValidCodeFormat:   otp.ValidFormat,
		VerifyPassword:    fakeVerify,
		IsRateLimited:     func(err error) bool { return errors.Is(err, errLimiterHit) },
		Errors: TwoFactorErrors{
			EngineNotReady:     errNotReady,
			InvalidRequest:     errInvalidRequest,
			AlreadyEnabled:     errAlreadyEnabled,
			NotStaged:          errNotStaged,
			NotEnabled:         errNotEnabled,
			InvalidTokenFormat: errTokenFormat,
			InvalidCode:        errInvalidCode,
			PasswordIncorrect:  errPasswordWrong,
			RateLimited:        errRateLimited,
			Unavailable:        errUnavailable,
		},
	}
}

func baseProfile(id string) account.Profile {
	return account.Profile{
		AccountID:         id,
		Identifier:        id + "@example.com",
		PasswordHash:      "plain:hunter22",
		PasswordChangedAt: testNow.Add(-72 * time.Hour),
	}
}

// currentCode returns the valid code for secret at testNow.
func currentCode(secret string, offset int) string {
	code, err := testOTP().Generate(secret, offset)
	if err != nil {
		panic(err)
	}
	return code
}

// wrongCode returns a well-formed code that does not verify for secret.
func wrongCode(secret string) string {
	e := testOTP()
	valid := map[string]bool{}
	for off := -1; off <= 1; off++ {
		valid[currentCode(secret, off)] = true
	}
	for _, c := range []string{"000000", "111111", "222222", "333333"} {
		if !valid[c] {
			if ok, _ := e.Verify(c, secret); !ok {
				return c
			}
		}
	}
	panic("no wrong code found")
}
