package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/fifosk/ebook-tools-sub003/internal/apperrors"
	"github.com/fifosk/ebook-tools-sub003/internal/logger"
)

// keyringService namespaces entries in the OS credential store.
const keyringService = "ebook-tools"

// Recognized secret names.
const (
	SecretGeminiAPIKey = "gemini_api_key"
	SecretTMDBAPIKey   = "tmdb_api_key"
	SecretOMDbAPIKey   = "omdb_api_key"
)

// vaultFileEnv points at a JSON document mapping secret names to values.
const vaultFileEnv = "EBOOK_VAULT_FILE"

// ResolveSecret looks a secret up by name: environment variable first
// (EBOOK_ + upper-cased name), then the vault file, then the OS keyring.
// An empty string with nil error means the secret is simply absent.
func ResolveSecret(name string) (string, error) {
	if v := os.Getenv(envPrefix + strings.ToUpper(name)); v != "" {
		return v, nil
	}

	if path := os.Getenv(vaultFileEnv); path != "" {
		v, err := vaultLookup(path, name)
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
	}

	v, err := keyring.Get(keyringService, name)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", nil
		}
		logger.Debug("Keyring lookup failed", "name", name, "error", err)
		return "", nil
	}
	return v, nil
}

// StoreSecret writes a secret to the OS keyring.
func StoreSecret(name, value string) error {
	if err := keyring.Set(keyringService, name, value); err != nil {
		return apperrors.Auth(fmt.Errorf("store secret %s: %w", name, err))
	}
	return nil
}

// DeleteSecret removes a secret from the OS keyring. Missing entries are
// not an error.
func DeleteSecret(name string) error {
	err := keyring.Delete(keyringService, name)
	if err != nil && err != keyring.ErrNotFound {
		return apperrors.Auth(fmt.Errorf("delete secret %s: %w", name, err))
	}
	return nil
}

func vaultLookup(path, name string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperrors.Config(fmt.Errorf("read vault file: %w", err))
	}
	var vault map[string]string
	if err := json.Unmarshal(data, &vault); err != nil {
		return "", apperrors.Config(fmt.Errorf("parse vault file: %w", err))
	}
	return vault[name], nil
}
