package redisstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/MrEthical07/goSecure/account"
)

const profileRecordVersionV1 = 1

var errCorruptRecord = errors.New("redisstore: corrupt profile record")

func encodeProfile(p account.Profile) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(profileRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, p.Version); err != nil {
		return nil, err
	}

	for _, s := range []string{p.AccountID, p.Identifier, p.PasswordHash, p.TwoFactorSecret} {
		if err := writeString(&buf, s); err != nil {
			return nil, err
		}
	}
	writeTime(&buf, p.PasswordChangedAt)

	if p.TwoFactorEnabled {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	if p.TwoFactorEnabledAt != nil {
		buf.WriteByte(1)
		writeTime(&buf, *p.TwoFactorEnabledAt)
	} else {
		buf.WriteByte(0)
	}

	if len(p.TwoFactorBackupCodes) > 255 {
		return nil, errors.New("redisstore: too many backup codes")
	}
	buf.WriteByte(byte(len(p.TwoFactorBackupCodes)))
	for _, h := range p.TwoFactorBackupCodes {
		if err := writeString(&buf, h); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func decodeProfile(data []byte) (account.Profile, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return account.Profile{}, err
	}
	if version != profileRecordVersionV1 {
		return account.Profile{}, errCorruptRecord
	}

	var p account.Profile
	if err := binary.Read(r, binary.BigEndian, &p.Version); err != nil {
		return account.Profile{}, err
	}
	for _, dst := range []*string{&p.AccountID, &p.Identifier, &p.PasswordHash, &p.TwoFactorSecret} {
		if *dst, err = readString(r); err != nil {
			return account.Profile{}, err
		}
	}
	if p.PasswordChangedAt, err = readTime(r); err != nil {
		return account.Profile{}, err
	}

	enabled, err := r.ReadByte()
	if err != nil {
		return account.Profile{}, err
	}
	p.TwoFactorEnabled = enabled == 1

	hasEnabledAt, err := r.ReadByte()
	if err != nil {
		return account.Profile{}, err
	}
	if hasEnabledAt == 1 {
		at, err := readTime(r)
		if err != nil {
			return account.Profile{}, err
		}
		p.TwoFactorEnabledAt = &at
	}

	n, err := r.ReadByte()
	if err != nil {
		return account.Profile{}, err
	}
	if n > 0 {
		p.TwoFactorBackupCodes = make([]string, n)
		for i := range p.TwoFactorBackupCodes {
			if p.TwoFactorBackupCodes[i], err = readString(r); err != nil {
				return account.Profile{}, err
			}
		}
	}

	if r.Len() != 0 {
		return account.Profile{}, errCorruptRecord
	}
	return p, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > 65535 {
		return errors.New("redisstore: field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// Zero time is stored as 0.
func writeTime(buf *bytes.Buffer, t time.Time) {
	var v int64
	if !t.IsZero() {
		v = t.UnixNano()
	}
	_ = binary.Write(buf, binary.BigEndian, v)
}

func readTime(r *bytes.Reader) (time.Time, error) {
	var v int64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return time.Time{}, err
	}
	if v == 0 {
		return time.Time{}, nil
	}
	return time.Unix(0, v).UTC(), nil
}
