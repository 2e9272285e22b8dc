package pending

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	recordVersionV1 = 1
)

var (
	// ErrNotFound means no live pending registration exists for the token.
	ErrNotFound = errors.New("pending registration not found")
	// ErrPhoneInFlight means another pending registration is already staged
	// for the same phone number.
	ErrPhoneInFlight = errors.New("pending registration already in flight for phone")
	// ErrUnavailable indicates the Redis backend is unreachable.
	ErrUnavailable = errors.New("pending store unavailable")
)

// Registration is the staged, not-yet-committed registration data awaiting
// OTP confirmation. Password is plaintext and transient: it lives only in
// this TTL-bound record and is discarded the moment the registration
// completes, expires, or fails.
type Registration struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Bio       string
	Role      string
	OTPExpiry int64
}

// Store keeps pending registrations in Redis, keyed by an opaque
// registration token the client echoes back on verify/resend. A secondary
// NX key per phone number deduplicates concurrent submissions so one phone
// never receives two parallel OTP conversations.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a pending-registration store. prefix namespaces keys.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "preg"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

func (s *Store) key(token string) string      { return s.prefix + ":" + token }
func (s *Store) phoneKey(phone string) string { return s.prefix + ":phone:" + phone }

// Save stages a registration under token with the given TTL and claims the
// phone dedup key atomically. Fails with ErrPhoneInFlight when another
// registration already holds the phone.
func (s *Store) Save(ctx context.Context, token string, rec *Registration, ttl time.Duration) error {
	encoded, err := encodeRegistration(rec)
	if err != nil {
		return err
	}

	ok, err := s.redis.SetNX(ctx, s.phoneKey(rec.Phone), token, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return ErrPhoneInFlight
	}

	if err := s.redis.Set(ctx, s.key(token), encoded, ttl).Err(); err != nil {
		// Best effort: release the phone claim so the caller can retry.
		_ = s.redis.Del(ctx, s.phoneKey(rec.Phone)).Err()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// Update rewrites an existing registration in place, restarting both the
// record TTL and the phone claim. Used on OTP resend, where the phone claim
// stays with the same token. Fails with ErrNotFound when token is not live.
func (s *Store) Update(ctx context.Context, token string, rec *Registration, ttl time.Duration) error {
	encoded, err := encodeRegistration(rec)
	if err != nil {
		return err
	}

	set, err := s.redis.SetXX(ctx, s.key(token), encoded, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !set {
		return ErrNotFound
	}

	if err := s.redis.Set(ctx, s.phoneKey(rec.Phone), token, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get loads the pending registration for token.
func (s *Store) Get(ctx context.Context, token string) (*Registration, error) {
	data, err := s.redis.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return decodeRegistration(data)
}

// Delete destroys the pending registration and releases its phone claim.
// Deleting an absent token is a no-op.
func (s *Store) Delete(ctx context.Context, token string) error {
	rec, err := s.Get(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.redis.Del(ctx, s.key(token), s.phoneKey(rec.Phone)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func encodeRegistration(rec *Registration) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, rec.OTPExpiry); err != nil {
		return nil, err
	}

	for _, field := range []string{
		rec.Email, rec.Password, rec.FirstName, rec.LastName, rec.Phone, rec.Bio, rec.Role,
	} {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func decodeRegistration(data []byte) (*Registration, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordVersionV1 {
		return nil, errors.New("invalid pending record version")
	}

	rec := &Registration{}
	if err := binary.Read(reader, binary.BigEndian, &rec.OTPExpiry); err != nil {
		return nil, err
	}

	for _, field := range []*string{
		&rec.Email, &rec.Password, &rec.FirstName, &rec.LastName, &rec.Phone, &rec.Bio, &rec.Role,
	} {
		value, err := readString(reader)
		if err != nil {
			return nil, err
		}
		*field = value
	}

	return rec, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > 65535 {
		return errors.New("pending record field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var length uint16
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return "", err
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
