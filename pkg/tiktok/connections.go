package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/takutakahashi/adplatform-auth/pkg/crypto"
	"github.com/takutakahashi/adplatform-auth/pkg/storage"
)

// ErrConnectionNotFound is returned when a platform has no record
var ErrConnectionNotFound = errors.New("connection not found")

// tokenFields are the record fields owned by a TokenBundle
var tokenFields = []string{"accessToken", "refreshToken", "tokenExpiry"}

// loadConnectionMap reads the connection map. A missing key is an empty map.
func loadConnectionMap(ctx context.Context, store storage.Store) (map[string]json.RawMessage, error) {
	raw, err := store.Get(ctx, ConnectionsStorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("failed to read connections: %w", err)
	}

	connections := map[string]json.RawMessage{}
	if raw == "" {
		return connections, nil
	}
	if err := json.Unmarshal([]byte(raw), &connections); err != nil {
		return nil, fmt.Errorf("failed to decode connections: %w", err)
	}
	return connections, nil
}

// mergeConnection overlays fields onto the platform entry, keeping every field
// it does not name, then drops the keys in remove and writes the whole map back
func mergeConnection(ctx context.Context, store storage.Store, platform string, fields map[string]interface{}, remove ...string) error {
	connections, err := loadConnectionMap(ctx, store)
	if err != nil {
		return err
	}

	entry := map[string]interface{}{}
	if existing, ok := connections[platform]; ok {
		if err := json.Unmarshal(existing, &entry); err != nil || entry == nil {
			log.Printf("[TIKTOK] Replacing unreadable %s connection entry: %v", platform, err)
			entry = map[string]interface{}{}
		}
	}
	for key, value := range fields {
		entry[key] = value
	}
	for _, key := range remove {
		delete(entry, key)
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode %s connection: %w", platform, err)
	}
	connections[platform] = encoded

	data, err := json.Marshal(connections)
	if err != nil {
		return fmt.Errorf("failed to encode connections: %w", err)
	}
	if err := store.Set(ctx, ConnectionsStorageKey, string(data)); err != nil {
		return fmt.Errorf("failed to write connections: %w", err)
	}
	return nil
}

func bundleFields(bundle *TokenBundle) map[string]interface{} {
	return map[string]interface{}{
		"accessToken":  bundle.AccessToken,
		"refreshToken": bundle.RefreshToken,
		"tokenExpiry":  bundle.TokenExpiry,
	}
}

// ConnectionService manages stored platform connections. Writes to the same
// platform are serialized within this process.
type ConnectionService struct {
	store     storage.Store
	cipher    crypto.Cipher
	auth      *AuthHandler
	refresher TokenRefresher
	clock     clock.PassiveClock

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewConnectionService creates a ConnectionService
func NewConnectionService(store storage.Store, cipher crypto.Cipher, auth *AuthHandler, refresher TokenRefresher, clk clock.PassiveClock) *ConnectionService {
	return &ConnectionService{
		store:     store,
		cipher:    cipher,
		auth:      auth,
		refresher: refresher,
		clock:     clk,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *ConnectionService) lock(platform string) func() {
	s.mu.Lock()
	l, ok := s.locks[platform]
	if !ok {
		l = &sync.Mutex{}
		s.locks[platform] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Connect completes the authorization of TikTok with code
func (s *ConnectionService) Connect(ctx context.Context, code string, creds Credentials) (*TokenBundle, error) {
	unlock := s.lock(Platform)
	defer unlock()

	return s.auth.HandleAuth(ctx, code, creds)
}

// List returns every stored connection keyed by platform.
// Entries that cannot be decoded are skipped.
func (s *ConnectionService) List(ctx context.Context) (map[string]*ConnectionRecord, error) {
	connections, err := loadConnectionMap(ctx, s.store)
	if err != nil {
		return nil, err
	}

	records := make(map[string]*ConnectionRecord, len(connections))
	for platform, raw := range connections {
		var record ConnectionRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			log.Printf("[TIKTOK] Skipping unreadable %s connection: %v", platform, err)
			continue
		}
		records[platform] = &record
	}
	return records, nil
}

// Platforms returns the stored platform names in order
func Platforms(records map[string]*ConnectionRecord) []string {
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the record of one platform
func (s *ConnectionService) Get(ctx context.Context, platform string) (*ConnectionRecord, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	record, ok := records[platform]
	if !ok {
		return nil, ErrConnectionNotFound
	}
	return record, nil
}

// Refresh replaces the stored token bundle of platform with a refreshed one.
// On failure the stored record is left untouched.
func (s *ConnectionService) Refresh(ctx context.Context, platform string, creds Credentials) (*TokenBundle, error) {
	if platform != Platform {
		return nil, NewAuthError(KindValidation, fmt.Sprintf("token refresh is not supported for %s", platform), s.clock.Now())
	}

	unlock := s.lock(platform)
	defer unlock()

	record, err := s.Get(ctx, platform)
	if err != nil {
		if errors.Is(err, ErrConnectionNotFound) {
			return nil, NewAuthError(KindValidation, fmt.Sprintf("%s is not connected", platform), s.clock.Now())
		}
		return nil, err
	}
	if record.RefreshToken == "" {
		return nil, NewAuthError(KindValidation, fmt.Sprintf("%s has no refresh token", platform), s.clock.Now())
	}

	if creds.AppID == "" {
		creds.AppID = record.AppID
	}

	refreshToken, err := s.cipher.Decrypt(ctx, record.RefreshToken)
	if err != nil {
		return nil, NormalizeError(err, s.clock.Now())
	}

	bundle, err := s.refresher.RefreshToken(ctx, refreshToken, creds)
	if err != nil {
		return nil, err
	}

	fields := bundleFields(bundle)
	fields["status"] = StatusConnected
	fields["verificationStatus"] = VerificationVerified
	fields["lastVerified"] = s.clock.Now().UTC()
	if err := mergeConnection(ctx, s.store, platform, fields); err != nil {
		return nil, err
	}

	log.Printf("[TIKTOK] Refreshed %s tokens, new expiry %s", platform, bundle.TokenExpiry.Format(time.RFC3339))
	return bundle, nil
}

// Disconnect marks platform disconnected and drops its tokens
func (s *ConnectionService) Disconnect(ctx context.Context, platform string) error {
	unlock := s.lock(platform)
	defer unlock()

	if _, err := s.Get(ctx, platform); err != nil {
		return err
	}

	fields := map[string]interface{}{"status": StatusDisconnected}
	if err := mergeConnection(ctx, s.store, platform, fields, tokenFields...); err != nil {
		return err
	}

	log.Printf("[TIKTOK] Disconnected %s", platform)
	return nil
}
