package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dnhngynops/muindb/internal/encryption"
)

// SettingsService stores source credentials, encrypted, in the settings
// key-value table.
type SettingsService struct {
	db        *sql.DB
	encryptor *encryption.Encryptor
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(db *sql.DB, encryptor *encryption.Encryptor) *SettingsService {
	return &SettingsService{db: db, encryptor: encryptor}
}

// apiKeySettingKey returns the settings table key for a source credential.
// Sources with more than one secret (client id and secret) use field to tell
// them apart.
func apiKeySettingKey(name Name, field string) string {
	if field == "" {
		field = "api_key"
	}
	return fmt.Sprintf("provider.%s.%s", name, field)
}

// ctxKeyOverride is the context key for per-call credential overrides.
type ctxKeyOverride struct{}

// WithAPIKeyOverride returns a child context whose lookups for the named
// source return key instead of the stored value. The verify command uses it
// to test a key before saving it.
func WithAPIKeyOverride(ctx context.Context, name Name, key string) context.Context {
	parent, _ := ctx.Value(ctxKeyOverride{}).(map[Name]string)

	// Copy so a parent context's map is never mutated.
	overrides := make(map[Name]string, len(parent)+1)
	for k, v := range parent {
		overrides[k] = v
	}
	overrides[name] = key
	return context.WithValue(ctx, ctxKeyOverride{}, overrides)
}

// GetAPIKey returns the decrypted primary credential for a source, or "" when
// none is stored.
func (s *SettingsService) GetAPIKey(ctx context.Context, name Name) (string, error) {
	if overrides, ok := ctx.Value(ctxKeyOverride{}).(map[Name]string); ok {
		if v, found := overrides[name]; found {
			return v, nil
		}
	}
	return s.GetSecret(ctx, name, "")
}

// GetSecret returns a named secret for a source ("" selects the API key).
func (s *SettingsService) GetSecret(ctx context.Context, name Name, field string) (string, error) {
	var encrypted string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?",
		apiKeySettingKey(name, field)).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading credential for %s: %w", name, err)
	}
	plaintext, err := s.encryptor.Decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("decrypting credential for %s: %w", name, err)
	}
	return plaintext, nil
}

// SetSecret encrypts and stores a secret for a source.
func (s *SettingsService) SetSecret(ctx context.Context, name Name, field, value string) error {
	encrypted, err := s.encryptor.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypting credential for %s: %w", name, err)
	}
	key := apiKeySettingKey(name, field)
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')",
		key, encrypted,
	); err != nil {
		return fmt.Errorf("storing credential for %s: %w", name, err)
	}
	return nil
}

// DeleteSecrets removes every stored secret for a source.
func (s *SettingsService) DeleteSecrets(ctx context.Context, name Name) error {
	prefix := fmt.Sprintf("provider.%s.", name)
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM settings WHERE substr(key, 1, ?) = ?", len(prefix), prefix,
	); err != nil {
		return fmt.Errorf("deleting credentials for %s: %w", name, err)
	}
	return nil
}

// KeyStatus describes whether a source has stored credentials.
type KeyStatus struct {
	Name        Name       `json:"name"`
	DisplayName string     `json:"display_name"`
	Fields      []string   `json:"fields,omitempty"`
	Tier        AccessTier `json:"tier"`
	HelpURL     string     `json:"help_url,omitempty"`
}

// ListKeyStatuses reports the stored credential fields for every remote
// source, in AllNames order. Values are never decrypted.
func (s *SettingsService) ListKeyStatuses(ctx context.Context) ([]KeyStatus, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM settings WHERE key LIKE 'provider.%' ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	fields := make(map[Name][]string)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning credential key: %w", err)
		}
		parts := strings.SplitN(strings.TrimPrefix(key, "provider."), ".", 2)
		if len(parts) != 2 {
			continue
		}
		fields[Name(parts[0])] = append(fields[Name(parts[0])], parts[1])
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating credentials: %w", err)
	}

	caps := Capabilities()
	var out []KeyStatus
	for _, name := range AllNames() {
		c, remote := caps[name]
		if !remote {
			continue
		}
		out = append(out, KeyStatus{
			Name:        name,
			DisplayName: name.DisplayName(),
			Fields:      fields[name],
			Tier:        c.Tier,
			HelpURL:     c.HelpURL,
		})
	}
	return out, nil
}

// Resolve returns configured when non-empty, otherwise the stored secret.
// Configuration and environment always win over the settings table.
func (s *SettingsService) Resolve(ctx context.Context, name Name, field, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if s == nil {
		return "", nil
	}
	if field == "" {
		return s.GetAPIKey(ctx, name)
	}
	return s.GetSecret(ctx, name, field)
}
